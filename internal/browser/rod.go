package browser

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
	"go.uber.org/zap"

	"github.com/hpungsan/will/internal/errors"
)

//go:embed overlay_apply.js
var applyOverlayJS string

//go:embed overlay_clear.js
var clearOverlayJS string

const probeJS = `() => ({
  visible: document.visibilityState === "visible",
  focused: document.hasFocus(),
})`

// bindingName is the window function the overlay buttons call.
const bindingName = "__willOverlayAction"

// Overlay button actions.
const (
	ActionGrant       = "grant"
	ActionBackToFocus = "backToFocus"
)

// OverlayAction is a button press inside an injected overlay.
type OverlayAction struct {
	TabID  string `json:"tab_id"`
	Action string `json:"action"`
	URL    string `json:"url"`
}

// Options selects the browser to drive.
type Options struct {
	// DebuggerURL attaches to a running browser. When empty one is launched.
	DebuggerURL string
	// Launch is the browser binary followed by raw flags.
	Launch   []string
	Headless bool
}

// Browser is a DevTools connection plus the bookkeeping the extension APIs
// used to provide: last-accessed times and overlay bindings per tab.
type Browser struct {
	opts Options
	log  *zap.Logger

	mu           sync.Mutex
	rod          *rod.Browser
	launcher     *launcher.Launcher
	lastAccessed map[string]time.Time
	lastSeen     map[string]string
	exposed      map[string]func() error
	onOverlay    func(OverlayAction)
	now          func() time.Time
}

// New creates a disconnected browser.
func New(opts Options, log *zap.Logger) *Browser {
	return &Browser{
		opts:         opts,
		log:          log,
		lastAccessed: make(map[string]time.Time),
		lastSeen:     make(map[string]string),
		exposed:      make(map[string]func() error),
		now:          time.Now,
	}
}

// OnOverlayAction installs the callback for overlay button presses. The
// callback runs on a DevTools event goroutine.
func (b *Browser) OnOverlayAction(fn func(OverlayAction)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onOverlay = fn
}

// Connect attaches to DebuggerURL or launches a browser. ctx bounds the
// lifetime of the connection.
func (b *Browser) Connect(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rod != nil {
		return nil
	}

	controlURL := b.opts.DebuggerURL
	if controlURL == "" {
		l := newLauncher(b.opts.Launch, b.opts.Headless)
		u, err := l.Launch()
		if err != nil {
			return errors.NewBrowserUnavailable(fmt.Errorf("launch: %w", err))
		}
		b.launcher = l
		controlURL = u
	}

	rb := rod.New().ControlURL(controlURL).Context(ctx)
	if err := rb.Connect(); err != nil {
		if b.launcher != nil {
			b.launcher.Kill()
			b.launcher = nil
		}
		return errors.NewBrowserUnavailable(fmt.Errorf("connect: %w", err))
	}
	b.rod = rb
	b.log.Info("browser connected", zap.String("control_url", controlURL))
	return nil
}

// Connected reports whether a DevTools session is open.
func (b *Browser) Connected() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rod != nil
}

// Close releases overlay bindings, the connection and any launched process.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, stop := range b.exposed {
		_ = stop()
		delete(b.exposed, id)
	}
	var err error
	if b.rod != nil {
		err = b.rod.Close()
		b.rod = nil
	}
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher = nil
	}
	return err
}

func (b *Browser) conn(ctx context.Context) (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rod == nil {
		return nil, errors.NewBrowserUnavailable(nil)
	}
	return b.rod.Context(ctx), nil
}

func (b *Browser) page(ctx context.Context, id string) (*rod.Page, error) {
	rb, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	p, err := rb.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("tab %s: %w", id, err)
	}
	return p, nil
}

func (b *Browser) touch(id string) time.Time {
	now := b.now()
	b.mu.Lock()
	b.lastAccessed[id] = now
	b.mu.Unlock()
	return now
}

func (b *Browser) accessed(id string) time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastAccessed[id]
}

func (b *Browser) forget(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.lastAccessed, id)
	delete(b.lastSeen, id)
	if stop, ok := b.exposed[id]; ok {
		_ = stop()
		delete(b.exposed, id)
	}
}

// ListTabs returns every open page. The active one is recorded as accessed now.
func (b *Browser) ListTabs(ctx context.Context) ([]Tab, error) {
	rb, err := b.conn(ctx)
	if err != nil {
		return nil, err
	}
	pages, err := rb.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	tabs := make([]Tab, 0, len(pages))
	probes := make([]probe, 0, len(pages))
	for _, p := range pages {
		info, err := p.Info()
		if err != nil || info.Type != proto.TargetTargetInfoTypePage {
			continue
		}
		id := string(p.TargetID)
		tabs = append(tabs, Tab{
			ID:           id,
			URL:          info.URL,
			Title:        info.Title,
			LastAccessed: b.accessed(id),
		})
		probes = append(probes, probePage(p))
	}

	if i := markActive(tabs, probes); i >= 0 {
		tabs[i].LastAccessed = b.touch(tabs[i].ID)
	}
	return tabs, nil
}

func probePage(p *rod.Page) probe {
	res, err := p.Eval(probeJS)
	if err != nil {
		return probe{}
	}
	return probe{
		visible: res.Value.Get("visible").Bool(),
		focused: res.Value.Get("focused").Bool(),
	}
}

// ActiveTab returns the active tab of the focused window.
func (b *Browser) ActiveTab(ctx context.Context) (Tab, bool, error) {
	tabs, err := b.ListTabs(ctx)
	if err != nil {
		return Tab{}, false, err
	}
	for _, t := range tabs {
		if t.Active {
			return t, true, nil
		}
	}
	return Tab{}, false, nil
}

// Activate brings a tab to the front.
func (b *Browser) Activate(ctx context.Context, id string) error {
	p, err := b.page(ctx, id)
	if err != nil {
		return err
	}
	if _, err := p.Activate(); err != nil {
		return fmt.Errorf("activate tab %s: %w", id, err)
	}
	b.touch(id)
	return nil
}

// Create opens url in a new tab and returns its id.
func (b *Browser) Create(ctx context.Context, url string) (string, error) {
	rb, err := b.conn(ctx)
	if err != nil {
		return "", err
	}
	p, err := rb.Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open %s: %w", url, err)
	}
	id := string(p.TargetID)
	b.touch(id)
	return id, nil
}

// ApplyOverlay blurs the page and shows the focus prompt. Applying twice is
// a no-op inside the page.
func (b *Browser) ApplyOverlay(ctx context.Context, id string) error {
	if err := b.expose(id); err != nil {
		return err
	}
	p, err := b.page(ctx, id)
	if err != nil {
		return err
	}
	if _, err := p.Eval(applyOverlayJS, bindingName); err != nil {
		return fmt.Errorf("apply overlay on %s: %w", id, err)
	}
	return nil
}

// ClearOverlay removes the focus prompt and restores the page.
func (b *Browser) ClearOverlay(ctx context.Context, id string) error {
	p, err := b.page(ctx, id)
	if err != nil {
		return err
	}
	if _, err := p.Eval(clearOverlayJS); err != nil {
		return fmt.Errorf("clear overlay on %s: %w", id, err)
	}
	return nil
}

// expose binds the overlay callback into the tab once. The binding lives on
// the connection context, not the caller's, and survives reloads.
func (b *Browser) expose(id string) error {
	b.mu.Lock()
	if _, ok := b.exposed[id]; ok {
		b.mu.Unlock()
		return nil
	}
	rb := b.rod
	b.mu.Unlock()
	if rb == nil {
		return errors.NewBrowserUnavailable(nil)
	}

	p, err := rb.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return fmt.Errorf("tab %s: %w", id, err)
	}
	stop, err := p.Expose(bindingName, func(arg gson.JSON) (interface{}, error) {
		b.dispatch(decodeAction(id, arg))
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("bind overlay on %s: %w", id, err)
	}

	b.mu.Lock()
	b.exposed[id] = stop
	b.mu.Unlock()
	return nil
}

func (b *Browser) dispatch(a OverlayAction) {
	b.mu.Lock()
	fn := b.onOverlay
	b.mu.Unlock()
	if fn == nil {
		b.log.Debug("overlay action without handler", zap.String("action", a.Action))
		return
	}
	fn(a)
}

func decodeAction(tabID string, arg gson.JSON) OverlayAction {
	return OverlayAction{
		TabID:  tabID,
		Action: arg.Get("action").Str(),
		URL:    arg.Get("url").Str(),
	}
}

// WatchNavigation calls fn whenever a page's URL or title changes, until
// ctx is cancelled. fn runs on a DevTools event goroutine.
func (b *Browser) WatchNavigation(ctx context.Context, fn func(tabID, url string)) error {
	rb, err := b.conn(ctx)
	if err != nil {
		return err
	}
	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(rb); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	wait := rb.EachEvent(
		func(e *proto.TargetTargetInfoChanged) {
			info := e.TargetInfo
			if info == nil || info.Type != proto.TargetTargetInfoTypePage {
				return
			}
			id := string(info.TargetID)
			if !b.changed(id, info.URL+"\x00"+info.Title) {
				return
			}
			fn(id, info.URL)
		},
		func(e *proto.TargetTargetDestroyed) {
			b.forget(string(e.TargetID))
		},
	)
	wait()
	return nil
}

func (b *Browser) changed(id, key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.lastSeen[id] == key {
		return false
	}
	b.lastSeen[id] = key
	return true
}

// newLauncher builds a launcher from a binary plus raw "--flag[=value]" args.
func newLauncher(launch []string, headless bool) *launcher.Launcher {
	l := launcher.New().Headless(headless)
	if len(launch) == 0 {
		return l
	}
	if bin := strings.TrimSpace(launch[0]); bin != "" {
		l = l.Bin(bin)
	}
	for _, raw := range launch[1:] {
		name, val, hasVal := parseFlag(raw)
		if name == "" {
			continue
		}
		if hasVal {
			l = l.Set(flags.Flag(name), val)
		} else {
			l = l.Set(flags.Flag(name))
		}
	}
	return l
}

func parseFlag(raw string) (name, val string, hasVal bool) {
	flagStr := strings.TrimLeft(strings.TrimSpace(raw), "-")
	return strings.Cut(flagStr, "=")
}
