package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"slices"
	"time"

	"github.com/nicholas-fedor/shoutrrr"
	"github.com/nicholas-fedor/shoutrrr/pkg/router"
	"github.com/nicholas-fedor/shoutrrr/pkg/types"
)

// ShoutrrrChannel sends notifications to any shoutrrr service URL
// (ntfy, telegram, slack, discord, smtp, ...). One sender serves all URLs.
type ShoutrrrChannel struct {
	urls   []string
	sender *router.ServiceRouter
}

// NewShoutrrrChannel builds the sender, which validates every URL.
func NewShoutrrrChannel(urls []string, timeout time.Duration) (*ShoutrrrChannel, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("shoutrrr: at least one URL is required")
	}
	sender, err := shoutrrr.CreateSender(urls...)
	if err != nil {
		return nil, fmt.Errorf("shoutrrr: invalid service URL: %w", err)
	}
	if timeout > 0 {
		sender.Timeout = timeout
	}
	sender.SetLogger(log.New(io.Discard, "", 0))

	return &ShoutrrrChannel{
		urls:   slices.Clone(urls),
		sender: sender,
	}, nil
}

// Name returns the name of the channel.
func (s *ShoutrrrChannel) Name() string {
	return "shoutrrr"
}

// IsEnabled returns whether the channel is enabled.
func (s *ShoutrrrChannel) IsEnabled() bool {
	return s.sender != nil
}

// Send delivers the notification to every configured URL and returns the
// first failure. The router applies its own timeout.
func (s *ShoutrrrChannel) Send(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := types.Params{}
	if n.Title != "" {
		params.SetTitle(n.Title)
	}
	for _, err := range s.sender.Send(n.Message, &params) {
		if err != nil {
			return err
		}
	}
	return nil
}
