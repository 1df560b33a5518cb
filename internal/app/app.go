package app

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"tgremind/internal/config"
	"tgremind/internal/notifier"
	"tgremind/internal/reminder"
	"tgremind/internal/runtime/supervisor"
	"tgremind/internal/transport/telegram"
	logx "tgremind/pkg/logx"
)

// App wires configuration, the Telegram adapter, the reminder pipeline and
// the lifecycle hooks together.
type App struct {
	cfgm     *config.Manager
	settings config.Settings

	log  logx.Logger
	logs *logx.Service

	adapter *telegram.Adapter
	source  *reminder.Source
	disp    *notifier.Dispatcher
	life    *Lifecycle
	loop    *Loop
}

func New(cfgPath string) (*App, error) {
	bootLog := logx.NewConsole("info").With(logx.String("comp", "config"))
	cfgm := config.NewManager(cfgPath)
	cfgm.SetLogger(bootLog)
	_, st, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	ad, err := telegram.New(telegram.Config{
		Token:     st.Token,
		Timeout:   st.Timeout,
		ParseMode: st.ParseMode,
	}, bootLog.With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(st.Logging, ad)
	cfgm.SetLogger(log.With(logx.String("comp", "config")))

	src := reminder.NewSource(ad,
		reminder.NewRegistry(st.Chats),
		reminder.NewWhenResolver(),
		st.AnchorOffset,
		log.With(logx.String("comp", "source")),
	)
	disp := notifier.New(notifier.Config{
		RatePerSec: st.SendRatePerSec,
		ParseMode:  st.ParseMode,
		DryRun:     st.DryRun,
	}, ad, src, log.With(logx.String("comp", "dispatcher")))
	life := NewLifecycle(LifecycleConfig{
		Silent:          st.Silent,
		ShutdownTimeout: st.ShutdownTimeout,
	}, disp, log.With(logx.String("comp", "lifecycle")))

	a := &App{
		cfgm:     cfgm,
		settings: st,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		adapter:  ad,
		source:   src,
		disp:     disp,
		life:     life,
	}
	a.loop = NewLoop(LoopConfig{
		Lead:       st.Lead,
		MaxCatchUp: st.MaxCatchUp,
		Location:   st.Location,
	}, src, disp, log.With(logx.String("comp", "loop")),
		WithHeartbeat(life.Heartbeat),
		WithReloads(cfgm.Subscribe(1), a.applyConfig),
	)
	return a, nil
}

// Run blocks until ctx is canceled or startup fails. On cancellation it sends
// the shutdown notice before returning.
func (a *App) Run(ctx context.Context) error {
	defer a.logs.Close()

	sup := supervisor.New(ctx, supervisor.WithLogger(a.log))
	sup.Go("config.watch", a.cfgm.Watch)
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil {
			a.log.Warn("background tasks did not stop cleanly", logx.Err(err))
		}
	}()

	if err := a.loop.Init(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	a.log.Info("started",
		logx.Bool("dry_run", a.disp.DryRun()),
		logx.Bool("silent", a.settings.Silent),
		logx.String("tz", a.settings.Location.String()),
		logx.Duration("lead", a.settings.Lead),
	)
	a.life.Startup(ctx)

	err := a.loop.Run(ctx)
	a.log.Info("stopping")
	_ = a.life.Shutdown(ctx)
	return err
}

// applyConfig runs on the loop goroutine between cycles.
func (a *App) applyConfig(cfg *config.Config) {
	st, err := cfg.Resolve()
	if err != nil {
		a.log.Warn("config reload ignored", logx.Err(err))
		return
	}
	a.logs.Apply(st.Logging)
	a.disp.SetDryRun(st.DryRun)
	chats := a.source.Registry().Discover(st.Chats)

	if changed := restartRequired(a.settings, st); len(changed) > 0 {
		a.log.Warn("config change requires restart", logx.String("changed", strings.Join(changed, ",")))
	}
	a.settings.Logging = st.Logging
	a.settings.DryRun = st.DryRun
	a.settings.Chats = st.Chats
	a.log.Info("config applied", logx.Bool("dry_run", st.DryRun), logx.Int("chats", len(chats)))
}

// restartRequired lists settings that only take effect on the next start.
func restartRequired(old, cur config.Settings) []string {
	var out []string
	check := func(name string, changed bool) {
		if changed {
			out = append(out, name)
		}
	}
	check("telegram.token", old.Token != cur.Token)
	check("telegram.parse_mode", old.ParseMode != cur.ParseMode)
	check("telegram.timeout", old.Timeout != cur.Timeout)
	check("timezone", old.Location.String() != cur.Location.String())
	check("silent", old.Silent != cur.Silent)
	check("reminders.lead", old.Lead != cur.Lead)
	check("reminders.anchor_offset", old.AnchorOffset != cur.AnchorOffset)
	check("reminders.max_catch_up", old.MaxCatchUp != cur.MaxCatchUp)
	check("reminders.send_rate_per_sec", old.SendRatePerSec != cur.SendRatePerSec)
	check("shutdown_timeout", old.ShutdownTimeout != cur.ShutdownTimeout)
	slices.Sort(out)
	return out
}
