package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"tgremind/internal/runtime/supervisor"
	logx "tgremind/pkg/logx"
)

const (
	TextStartup  = "notifications are on"
	TextShutdown = "notifications are off"
)

// NotifyFunc reports a state to the service manager (see daemon.SdNotify).
type NotifyFunc func(state string) (bool, error)

func sdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

type LifecycleConfig struct {
	Silent          bool
	ShutdownTimeout time.Duration
}

// Lifecycle announces startup and shutdown to every known chat and keeps
// systemd informed. Outside systemd the notifications are no-ops.
type Lifecycle struct {
	disp    Dispatcher
	log     logx.Logger
	silent  bool
	timeout time.Duration

	notify   NotifyFunc
	watchdog bool

	shutdownOnce sync.Once
}

func NewLifecycle(cfg LifecycleConfig, disp Dispatcher, log logx.Logger) *Lifecycle {
	if log.IsZero() {
		log = logx.Nop()
	}
	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		log.Warn("systemd watchdog misconfigured", logx.Err(err))
	}
	return &Lifecycle{
		disp:     disp,
		log:      log,
		silent:   cfg.Silent,
		timeout:  timeout,
		notify:   sdNotify,
		watchdog: wd > 0,
	}
}

// Startup broadcasts the startup notice unless silent and reports readiness.
// A failed broadcast is logged, not returned.
func (l *Lifecycle) Startup(ctx context.Context) {
	if l.silent {
		l.log.Debug("startup notice suppressed")
	} else if res, err := l.disp.Send(ctx, TextStartup, nil); err != nil {
		l.log.Warn("startup notice failed", logx.Err(err), logx.Int("sent", res.Sent), logx.Int("failed", res.Failed))
	}
	l.sd(daemon.SdNotifyReady)
}

// Heartbeat pings the systemd watchdog when it is enabled.
func (l *Lifecycle) Heartbeat() {
	if l.watchdog {
		l.sd(daemon.SdNotifyWatchdog)
	}
}

// Shutdown broadcasts the shutdown notice on a one-shot goroutine and waits
// for it at most the configured timeout. Only the first call does anything.
// ctx may already be canceled; only its values are used.
func (l *Lifecycle) Shutdown(ctx context.Context) error {
	var err error
	l.shutdownOnce.Do(func() {
		l.sd(daemon.SdNotifyStopping)

		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.timeout)
		defer cancel()

		sup := supervisor.New(sctx, supervisor.WithLogger(l.log))
		sup.Go("shutdown.notice", func(c context.Context) error {
			_, err := l.disp.Send(c, TextShutdown, nil)
			return err
		})
		err = sup.Wait(sctx)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			l.log.Warn("shutdown notice timed out", logx.Duration("timeout", l.timeout))
		case err != nil:
			l.log.Warn("shutdown notice failed", logx.Err(err))
		default:
			l.log.Info("shutdown notice sent")
		}
	})
	return err
}

func (l *Lifecycle) sd(state string) {
	sent, err := l.notify(state)
	if err != nil {
		l.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		l.log.Debug("sd_notify", logx.String("state", state))
	}
}
