package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"

	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/events"
	"github.com/nandatheguntupalli/web-eval-agent-screenshots/internal/session"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 800
	defaultMaxShots       = 50

	screencastQuality = 60
	screenshotQuality = 75
	captureTimeout    = 15 * time.Second
	drainTimeout      = 30 * time.Second
)

var ErrNotRunning = errors.New("browser engine not running")

// GallerySink receives the accumulated screenshot list.
type GallerySink interface {
	SetGallery(raw []any) int
}

// Options configures an Engine.
type Options struct {
	Headless bool
	// Bin is the browser executable. Empty lets the launcher find or
	// download one.
	Bin            string
	ViewportWidth  int
	ViewportHeight int
	MaxShots       int

	Publisher events.Publisher
	Gallery   GallerySink
	Holder    *session.Holder
	Logger    *slog.Logger
}

// Engine drives one automated Chromium page and streams it to the
// dashboard. It implements session.Handle.
type Engine struct {
	opts Options
	pub  events.Publisher
	log  *slog.Logger

	mu        sync.Mutex
	launch    *launcher.Launcher
	browser   *rod.Browser
	page      *rod.Page
	loop      *session.TaskLoop
	cancel    context.CancelFunc
	sessionID string
	casting   bool
	running   bool
	shots     []string

	// closed is closed when the last session's browser has shut down.
	closed chan struct{}
}

// New creates an idle engine.
func New(opts Options) *Engine {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = defaultViewportWidth
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = defaultViewportHeight
	}
	if opts.MaxShots <= 0 {
		opts.MaxShots = defaultMaxShots
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.Discard
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, pub: pub, log: logger}
}

// Start launches the browser, attaches the engine to the session holder
// and, if url is set, navigates to it.
func (e *Engine) Start(ctx context.Context, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return errors.New("browser engine already running")
	}
	if e.closed != nil {
		closed := e.closed
		e.mu.Unlock()
		<-closed
		e.mu.Lock()
		if e.running {
			return errors.New("browser engine already running")
		}
	}

	l := launcher.New().Headless(e.opts.Headless)
	if e.opts.Bin != "" {
		l = l.Bin(e.opts.Bin)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	browser := rod.New().ControlURL(controlURL).Context(runCtx)
	if err := browser.Connect(); err != nil {
		cancel()
		l.Kill()
		return fmt.Errorf("connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		cancel()
		browser.Close()
		l.Kill()
		return fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             e.opts.ViewportWidth,
		Height:            e.opts.ViewportHeight,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		e.log.Warn("set viewport", "err", err)
	}

	loop := session.NewTaskLoop(e.pub, session.WithLogger(e.log))
	loop.Start(runCtx)

	e.launch = l
	e.browser = browser
	e.page = page
	e.loop = loop
	e.cancel = cancel
	e.running = true
	e.shots = nil

	e.streamEvents(runCtx, page)
	if err := e.startScreencastLocked(); err != nil {
		e.log.Warn("start screencast", "err", err)
	}

	if e.opts.Holder != nil {
		e.sessionID = e.opts.Holder.Attach(loop, e)
	}
	e.pub.Publish(events.Status("🚀", "Browser session started"))

	if url != "" {
		target := url
		if err := loop.Submit(func(ctx context.Context) error {
			return page.Context(ctx).Navigate(target)
		}); err != nil {
			e.log.Warn("schedule initial navigation", "url", url, "err", err)
		}
	}
	return nil
}

// streamEvents forwards console, network and screencast events until ctx
// is cancelled.
func (e *Engine) streamEvents(ctx context.Context, page *rod.Page) {
	p := page.Context(ctx)
	_ = proto.RuntimeEnable{}.Call(p)
	_ = proto.NetworkEnable{}.Call(p)

	wait := p.EachEvent(
		func(ev *proto.RuntimeConsoleAPICalled) {
			e.pub.Publish(consoleLine(ev))
		},
		func(ev *proto.NetworkRequestWillBeSent) {
			if line, ok := requestLine(ev); ok {
				e.pub.Publish(line)
			}
		},
		func(ev *proto.NetworkResponseReceived) {
			if line, ok := responseLine(ev); ok {
				e.pub.Publish(line)
			}
		},
		func(ev *proto.PageFrameNavigated) {
			if ev.Frame == nil || ev.Frame.ParentID != "" {
				return
			}
			e.pub.Publish(events.LogLine{Message: "Navigated to " + shortenURL(ev.Frame.URL), Emoji: "🧭"})
			e.scheduleCapture()
		},
		func(ev *proto.PageScreencastFrame) {
			go func() {
				_ = proto.PageScreencastFrameAck{SessionID: ev.SessionID}.Call(p)
			}()
			if e.isCasting() {
				e.pub.Publish(events.FrameUpdate{Image: frameDataURL(ev.Data)})
			}
		},
	)
	go wait()
}

func (e *Engine) scheduleCapture() {
	e.mu.Lock()
	loop := e.loop
	e.mu.Unlock()
	if loop == nil {
		return
	}
	if err := loop.Submit(e.Capture); err != nil {
		e.log.Debug("schedule screenshot", "err", err)
	}
}

// Capture takes a screenshot of the page once it has loaded and pushes
// the screenshot list to the gallery. It runs on the task loop.
func (e *Engine) Capture(ctx context.Context) error {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page == nil {
		return ErrNotRunning
	}

	cctx, cancel := context.WithTimeout(ctx, captureTimeout)
	defer cancel()
	p := page.Context(cctx)

	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait for page load: %w", err)
	}
	img, err := p.Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: gson.Int(screenshotQuality),
	})
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}

	e.mu.Lock()
	e.shots = append(e.shots, base64.StdEncoding.EncodeToString(img))
	if len(e.shots) > e.opts.MaxShots {
		e.shots = e.shots[len(e.shots)-e.opts.MaxShots:]
	}
	batch := make([]any, len(e.shots))
	for i, s := range e.shots {
		batch[i] = s
	}
	e.mu.Unlock()

	if e.opts.Gallery != nil {
		e.opts.Gallery.SetGallery(batch)
	}
	return nil
}

// HandleInput replays a dashboard input on the page.
func (e *Engine) HandleInput(ctx context.Context, in session.Input) error {
	e.mu.Lock()
	page := e.page
	e.mu.Unlock()
	if page == nil {
		return ErrNotRunning
	}
	p := page.Context(ctx)
	return dispatchInput(p, p, in)
}

// Pause stops publishing frames at once and schedules the screencast
// shutdown on the task loop.
func (e *Engine) Pause() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	e.casting = false
	loop := e.loop
	e.mu.Unlock()

	return loop.Submit(func(ctx context.Context) error {
		e.mu.Lock()
		page, casting := e.page, e.casting
		e.mu.Unlock()
		if page == nil || casting {
			return nil
		}
		return proto.PageStopScreencast{}.Call(page.Context(ctx))
	})
}

// Resume schedules a screencast restart on the task loop.
func (e *Engine) Resume() error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return ErrNotRunning
	}
	loop := e.loop
	e.mu.Unlock()

	return loop.Submit(func(ctx context.Context) error {
		e.mu.Lock()
		page, casting := e.page, e.casting
		e.mu.Unlock()
		if page == nil || casting {
			return nil
		}
		if err := e.screencast().Call(page.Context(ctx)); err != nil {
			return fmt.Errorf("resume screencast: %w", err)
		}
		e.mu.Lock()
		if e.page == page && e.running {
			e.casting = true
		}
		e.mu.Unlock()
		return nil
	})
}

func (e *Engine) screencast() proto.PageStartScreencast {
	return proto.PageStartScreencast{
		Format:        proto.PageStartScreencastFormatJpeg,
		Quality:       gson.Int(screencastQuality),
		MaxWidth:      gson.Int(e.opts.ViewportWidth),
		MaxHeight:     gson.Int(e.opts.ViewportHeight),
		EveryNthFrame: gson.Int(1),
	}
}

func (e *Engine) startScreencastLocked() error {
	if e.casting {
		return nil
	}
	if err := e.screencast().Call(e.page); err != nil {
		return err
	}
	e.casting = true
	return nil
}

func (e *Engine) isCasting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.casting
}

// Stop detaches from the session holder and stops the task loop without
// waiting. Inputs already queued still run against the page; the browser
// is closed once the loop has drained. Calling Stop on an idle engine is a
// no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.running {
		return nil
	}
	e.running = false
	e.casting = false
	id := e.sessionID
	e.sessionID = ""

	if e.opts.Holder != nil && id != "" {
		e.opts.Holder.Detach(id)
	}
	e.loop.Stop()

	closed := make(chan struct{})
	e.closed = closed
	go e.teardown(e.browser, e.page, e.launch, e.loop, e.cancel, closed)
	return nil
}

func (e *Engine) teardown(browser *rod.Browser, page *rod.Page, l *launcher.Launcher, loop *session.TaskLoop, cancel context.CancelFunc, closed chan struct{}) {
	defer close(closed)

	select {
	case <-loop.Done():
	case <-time.After(drainTimeout):
		e.log.Warn("task loop still busy, closing browser anyway")
	}

	err := browser.Close()
	cancel()
	l.Cleanup()

	e.mu.Lock()
	if e.page == page {
		e.browser, e.page, e.loop, e.launch, e.cancel = nil, nil, nil, nil, nil
	}
	e.mu.Unlock()

	if err != nil {
		e.log.Warn("close browser", "err", err)
		return
	}
	e.log.Info("browser session closed")
}

// Shutdown stops the engine and waits until the browser is closed or ctx
// is done.
func (e *Engine) Shutdown(ctx context.Context) error {
	if err := e.Stop(); err != nil {
		return err
	}
	e.mu.Lock()
	closed := e.closed
	e.mu.Unlock()
	if closed == nil {
		return nil
	}
	select {
	case <-closed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the browser is up.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}
