package runner

import (
	"go.uber.org/zap"

	"github.com/qtosh1/cats-farmer/internal/cats"
	"github.com/qtosh1/cats-farmer/internal/config"
	"github.com/qtosh1/cats-farmer/internal/farmer"
	"github.com/qtosh1/cats-farmer/internal/telegram"
)

// NewFactory wires a gotd session, a cats client and a farmer per binding.
func NewFactory(cfg config.Config, reporter farmer.Reporter) Factory {
	return func(b Binding) (Farm, error) {
		opts := telegram.Options{
			Name:    b.Session,
			Dir:     cfg.SessionsDir,
			APIID:   cfg.APIID,
			APIHash: cfg.APIHash,
			Logger:  b.Logger,
		}
		backendOpts := cats.Options{
			BaseURL:       cfg.BackendURL,
			UserAgent:     b.UserAgent,
			Timeout:       cfg.HTTPTimeout,
			ProxyCheckURL: cfg.ProxyCheckURL,
			Logger:        b.Logger,
		}
		if b.Proxy != nil {
			dialer, err := b.Proxy.Dialer()
			if err != nil {
				return nil, err
			}
			if dialer == nil && b.Logger != nil {
				b.Logger.Warn("Proxy does not carry MTProto, Telegram traffic goes direct",
					zap.Stringer("proxy", b.Proxy))
			}
			opts.Dialer = dialer
			backendOpts.Proxy = b.Proxy.URL()
		}

		return farmer.New(farmer.Config{
			Bot:            cfg.BotUsername,
			ShortName:      cfg.AppShortName,
			StartParam:     cfg.StartParam(),
			TaskGroup:      cfg.TaskGroup,
			DoChannelTasks: cfg.DoChannelsTasks,
			CycleSleep:     cfg.CycleSleep,
			ErrorSleep:     cfg.ErrorSleep,
			UserAgent:      b.UserAgent,
			Proxy:          b.Proxy,
		}, telegram.NewSession(opts), cats.New(backendOpts), reporter, b.Logger), nil
	}
}
