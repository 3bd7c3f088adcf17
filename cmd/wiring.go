// File: cmd/wiring.go
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/xkilldash9x/courtbook/internal/observability"
	"github.com/xkilldash9x/courtbook/internal/portal"
	"github.com/xkilldash9x/courtbook/internal/portal/browserdrv"
	"github.com/xkilldash9x/courtbook/internal/portal/httpdrv"
	"github.com/xkilldash9x/courtbook/internal/session"
)

// buildDriver assembles the full stack for one command invocation: cookie
// store, the configured execution substrate, and the protocol driver on
// top. The returned cleanup must be called when the command finishes.
func buildDriver(ctx context.Context) (*portal.Driver, func(), error) {
	log := observability.GetLogger()

	sessionPath, err := appCfg.SessionPath()
	if err != nil {
		return nil, nil, err
	}
	store := session.NewStore(sessionPath, appCfg.Session.TTL, log)

	var (
		sub     portal.Substrate
		cleanup = func() {}
	)
	switch appCfg.Portal.Engine {
	case "browser":
		b, err := browserdrv.New(ctx, appCfg.Portal.BaseURL, appCfg.Browser, log)
		if err != nil {
			return nil, nil, fmt.Errorf("browser engine: %w", err)
		}
		sub = b
		cleanup = b.Close
	default:
		h, err := httpdrv.New(appCfg.Portal.BaseURL, appCfg.Network, log)
		if err != nil {
			return nil, nil, err
		}
		sub = h
	}

	creds := portal.Credentials{
		BaseURL:  appCfg.Portal.BaseURL,
		Username: appCfg.Portal.Username,
		Password: appCfg.Portal.Password,
	}
	return portal.NewDriver(sub, store, creds, appCfg.Session.VerifyWindow, log), cleanup, nil
}

// parsePortalDate accepts the portal's display format, ISO dates, and the
// "today"/"tomorrow" shorthands. An empty value means today.
func parsePortalDate(s string) (time.Time, error) {
	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	switch s {
	case "", "today":
		return today, nil
	case "tomorrow":
		return today.AddDate(0, 0, 1), nil
	}

	for _, layout := range []string{portal.PortalDateFormat, "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (want MM/DD/YYYY, YYYY-MM-DD, \"today\", or \"tomorrow\")", s)
}

// resolveActivity applies the configured default when the flag is empty.
func resolveActivity(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if appCfg.Portal.DefaultActivity != "" {
		return appCfg.Portal.DefaultActivity, nil
	}
	return "", fmt.Errorf("no activity given: pass --activity or set portal.default_activity")
}
