package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/qtosh1/cats-farmer/internal/proxy"
	"github.com/qtosh1/cats-farmer/internal/telegram"
	"github.com/qtosh1/cats-farmer/internal/useragent"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List session files with their user agent and proxy",
	Args:  cobra.NoArgs,
	RunE:  runSessions,
}

func runSessions(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	names, err := telegram.ListSessions(cfg.SessionsDir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(names) == 0 {
		fmt.Fprintf(out, "No sessions in %s\n", cfg.SessionsDir)
		return nil
	}

	agents, err := useragent.Load(cfg.UserAgentsFile, useragent.NewGenerator(0), logger.Named("useragent"))
	if err != nil {
		return err
	}
	var proxies []proxy.Proxy
	if cfg.UseProxyFile {
		if proxies, err = proxy.LoadFile(cfg.ProxiesFile, logger.Named("proxy")); err != nil {
			return err
		}
	}
	assigned := proxy.Assign(names, proxies)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tPROXY\tUSER AGENT")
	for _, name := range names {
		ua, ok := agents.Get(name)
		if !ok {
			ua = "-"
		}
		px := "direct"
		if p := assigned[name]; p != nil {
			px = p.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", name, px, ua)
	}
	return w.Flush()
}
