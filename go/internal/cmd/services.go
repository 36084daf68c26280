package main

import (
	"database/sql"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/ctfsession/go/clients/ctf_api_client"
	"github.com/mcdev12/ctfsession/go/internal/archive"
	"github.com/mcdev12/ctfsession/go/internal/arena"
	"github.com/mcdev12/ctfsession/go/internal/config"
	"github.com/mcdev12/ctfsession/go/internal/notice"
	"golang.org/x/time/rate"
)

func setupArena(cfg *config.Config, database *sql.DB) (*arena.Arena, error) {
	// Wire up dependency injection chain
	// Portal client → push channel → archive → arena

	client := ctf_api_client.NewClient(cfg.Portal.BaseURL, cfg.Portal.Token)
	client.SetTimeout(cfg.Portal.Timeout)
	if cfg.Portal.Cookie != "" {
		client.SetHeader(ctf_api_client.CookieHeader, cfg.Portal.Cookie)
	}

	channel, err := setupChannel(cfg, client)
	if err != nil {
		return nil, err
	}

	opts := arena.Options{
		GameID:      cfg.Portal.GameID,
		Clock:       clockwork.NewRealClock(),
		Channel:     channel,
		Shell:       arena.LogShell{},
		SubmitLimit: rate.Every(cfg.Submit.Interval),
		SubmitBurst: cfg.Submit.Burst,
	}
	if database != nil {
		opts.Recorder = archive.NewSQLRepository(database)
	}

	return arena.New(client, opts), nil
}

func setupChannel(cfg *config.Config, client *ctf_api_client.Client) (notice.Channel, error) {
	switch cfg.Push.Transport {
	case config.TransportNATS:
		natsCfg := notice.DefaultNATSConfig()
		natsCfg.URL = cfg.Push.NATSURL
		natsCfg.SubjectPrefix = cfg.Push.NATSSubjectPrefix
		natsCfg.StreamName = cfg.Push.NATSStream
		if cfg.Push.ReconnectWait > 0 {
			natsCfg.ReconnectWait = cfg.Push.ReconnectWait
		}
		return notice.NewNATSChannel(natsCfg, cfg.Portal.GameID), nil
	case config.TransportWebsocket:
		hubURL, err := client.HubURL(cfg.Portal.GameID)
		if err != nil {
			return nil, fmt.Errorf("failed to build hub url: %w", err)
		}
		return notice.NewWebsocketChannel(hubURL, client.Headers(), notice.DefaultWebsocketConfig()), nil
	default:
		return nil, nil
	}
}
