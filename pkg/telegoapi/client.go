package telegoapi

import (
	"context"

	"github.com/mymmrac/telego"
	"go.uber.org/ratelimit"
)

// sendRateLimit caps outbound sends to stay under the Bot API flood limits.
const sendRateLimit = 20

// Client wraps a telego.Bot with a global rate limiter on outbound sends.
// It implements both BotAPI and FileAPI; file lookups are not limited since
// they do not count against the message flood limits.
type Client struct {
	bot         *telego.Bot
	ratelimiter ratelimit.Limiter
}

// NewClient creates a rate-limited client around the given bot.
func NewClient(bot *telego.Bot) *Client {
	return &Client{
		bot:         bot,
		ratelimiter: ratelimit.New(sendRateLimit),
	}
}

// SendMessage sends a message, honoring the global send rate limit.
func (c *Client) SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	c.ratelimiter.Take()
	return c.bot.SendMessage(ctx, params)
}

// GetMe returns the bot's own user record.
func (c *Client) GetMe(ctx context.Context) (*telego.User, error) {
	return c.bot.GetMe(ctx)
}

// GetFile resolves a file reference to its transient download location.
func (c *Client) GetFile(ctx context.Context, params *telego.GetFileParams) (*telego.File, error) {
	return c.bot.GetFile(ctx, params)
}

// FileDownloadURL builds the download URL for a resolved file path.
func (c *Client) FileDownloadURL(filepath string) string {
	return c.bot.FileDownloadURL(filepath)
}
