package photopicker

import (
	"errors"
	"image"
	"log/slog"
	"sync"

	"go.uber.org/atomic"

	"github.com/BrandonKowalski/photopicker/pkg/photopicker/constants"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/decode"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/dispatch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/fetch"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/geom"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/internal"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/library"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/router"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/selection"
	"github.com/BrandonKowalski/photopicker/pkg/photopicker/transition"
)

// SurfaceFunc returns the host surface showing screen, or nil.
type SurfaceFunc func(screen router.Screen) transition.Surface

// SessionOptions configures a Session. Only Library is required.
//
// A non-zero Config is used as given, so a hand-built one with a zero
// Selection.MaxCount selects without a count limit.
type SessionOptions struct {
	Config   Config            // Defaults to DefaultConfig() when zero
	Library  library.Service   // Where assets are read from
	UI       dispatch.Executor // Executor owning the session (default: a private serial queue, see Session.Run)
	Selected []library.Asset   // Assets selected when the picker opens

	Screen     geom.Size             // Screen bounds, in points
	Transition transition.DataSource // Representative view provider, nil disables animated transitions
	Delegate   transition.Delegate
	Driver     transition.Driver // Defaults to a frame driver on UI
	Surfaces   SurfaceFunc

	Logger *slog.Logger
}

// Session is one run of the picker. It owns the selection, the shared image
// cache, both pipelines, the screen router and the transition machine.
//
// Session methods must be called from the UI executor. Completions passed to
// Thumbnail and LoadPreview run there too. Without SessionOptions.UI the
// session owns a serial queue and hosts call in through Run.
type Session struct {
	cfg       Config
	policy    selection.Policy
	direction constants.PhotoDirection
	assets    []library.Asset

	store     *selection.Store
	cache     *internal.ImageCache
	pipeline  *decode.Pipeline
	fetcher   *fetch.Fetcher
	localizer *internal.Localizer
	router    *router.Router
	machine   *transition.Machine
	ownUI     *dispatch.Queue
	surfaces  SurfaceFunc
	screen    geom.Size
	logger    *slog.Logger

	mu     sync.Mutex
	status map[string]library.Info // last fetch outcome per asset

	closed atomic.Bool
}

type openPreview struct {
	Index  int
	Resume *router.Resume
}

type openSelection struct{}

type goBack struct{}

type sendSelection struct{}

// NewSession opens the picker over assets, ordered newest first.
func NewSession(assets []library.Asset, opts SessionOptions) *Session {
	cfg := opts.Config
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	if cfg.Decode.Scale <= 0 {
		cfg.Decode.Scale = 2
	}
	ui := opts.UI
	var ownUI *dispatch.Queue
	if ui == nil {
		ownUI = dispatch.NewQueue("session.ui")
		ui = ownUI
	}
	logger := opts.Logger
	if logger == nil {
		logger = internal.GetLogger()
	}

	visible := make([]library.Asset, 0, len(assets))
	for _, a := range assets {
		if cfg.Selection.HideVideo && a.IsVideo() {
			continue
		}
		visible = append(visible, a)
	}

	cache := internal.NewImageCacheWithLimits(cfg.Cache.Entries, cfg.Cache.Bytes)

	s := &Session{
		cfg:       cfg,
		policy:    cfg.Policy(),
		direction: cfg.Direction(),
		assets:    visible,
		store:     selection.NewStore(opts.Selected...),
		cache:     cache,
		localizer: internal.NewLocalizer(cfg.Locale),
		ownUI:     ownUI,
		surfaces:  opts.Surfaces,
		screen:    opts.Screen,
		logger:    logger,
		status:    make(map[string]library.Info),
	}

	s.pipeline = decode.NewPipeline(decode.Options{
		Workers:  cfg.Decode.Workers,
		Scale:    cfg.Decode.Scale,
		Cache:    cache,
		Delivery: ui,
	})
	s.fetcher = fetch.New(opts.Library, fetch.Options{
		UI:    ui,
		Cache: cache,
		Mode:  library.DeliveryFastPreview,
	})

	if opts.Transition != nil {
		s.machine = transition.New(opts.Transition, opts.Delegate, transition.Options{
			Driver:             opts.Driver,
			UI:                 ui,
			Duration:           cfg.Transition.Duration,
			BackgroundDuration: cfg.Transition.BackgroundDuration,
			CommitThreshold:    cfg.Transition.CommitThreshold,
			FadeMargin:         cfg.Transition.FadeMargin,
			MinimumScale:       cfg.Transition.MinimumScale,
		})
	}

	s.router = router.New().
		OnTransition(s.route).
		OnNavigate(s.navigate).
		TrackGesture(s.tracking)
	_ = s.router.Start(router.ScreenGrid, nil)

	logger.Debug("Picker session opened",
		"assets", len(visible),
		"selected", s.store.Len(),
		"locale", s.localizer.Tag().String())
	return s
}

// Run executes fn on the session's private queue and waits for it. It
// returns false if the session was closed before fn ran. When the host
// supplied SessionOptions.UI the caller is already on it, so fn runs
// directly. Run must not be called from within fn.
func (s *Session) Run(fn func()) bool {
	if s.ownUI == nil {
		fn()
		return true
	}
	return s.ownUI.Sync(fn)
}

// Assets returns the assets shown in the grid, newest first.
func (s *Session) Assets() []library.Asset {
	return append([]library.Asset(nil), s.assets...)
}

// Selection exposes the store so hosts can observe changes.
func (s *Session) Selection() *selection.Store {
	return s.store
}

// Screen returns the visible screen.
func (s *Session) Screen() router.Screen {
	screen, _ := s.router.Current()
	return screen
}

// AssetAtCell returns the asset drawn in grid cell.
func (s *Session) AssetAtCell(cell int) (library.Asset, bool) {
	i := CellIndex(s.direction, cell, len(s.assets))
	if i < 0 {
		return library.Asset{}, false
	}
	return s.assets[i], true
}

// Cell describes grid cell for drawing.
func (s *Session) Cell(cell int) (CellInfo, bool) {
	asset, ok := s.AssetAtCell(cell)
	if !ok {
		return CellInfo{}, false
	}

	c := s.policy.Cell(s.store, asset)
	info := CellInfo{
		Asset:  asset,
		State:  c.State,
		Number: c.Number,
		Masked: c.Masked(),
		Badge:  s.badge(asset, c.State),
	}
	if asset.IsVideo() {
		info.Duration = FormatDuration(asset.Duration)
	}
	return info, true
}

func (s *Session) badge(asset library.Asset, state selection.CellState) string {
	if state == selection.Disabled {
		return constants.BadgeDisabled
	}

	s.mu.Lock()
	st, seen := s.status[asset.ID]
	s.mu.Unlock()

	switch {
	case seen && st.InCloud && st.Err != nil:
		return constants.BadgeCloudErr
	case seen && st.InCloud:
		return constants.BadgeCloud
	case asset.IsVideo():
		return constants.BadgeVideo
	default:
		return constants.BadgeNone
	}
}

// Toggle selects or deselects asset. A refused selection returns
// ToggleActionRejected with the selection rule's error; pass it to Alert for
// the message to show.
func (s *Session) Toggle(asset library.Asset) (ToggleAction, error) {
	if s.closed.Load() {
		return ToggleActionNone, ErrSessionClosed
	}

	if s.store.Contains(asset) {
		s.store.Remove(asset)
		return ToggleActionRemoved, nil
	}

	if err := s.policy.Check(s.store, asset); err != nil {
		s.logger.Debug("Selection refused", "asset", asset.ID, "error", err)
		return ToggleActionRejected, err
	}

	if s.store.Add(asset) {
		return ToggleActionAdded, nil
	}
	return ToggleActionNone, nil
}

// Alert localises a selection rule error. It returns "" for other errors.
func (s *Session) Alert(err error) string {
	switch {
	case errors.Is(err, selection.ErrSelectionLimit):
		n := s.policy.MaxCount
		return s.localizer.Text("SelectionLimit", n, map[string]any{"Count": n})
	case errors.Is(err, selection.ErrVideoLimit):
		n := max(s.policy.MaxVideos, 1)
		return s.localizer.Text("VideoLimit", n, map[string]any{"Count": n})
	case errors.Is(err, selection.ErrVideoTooLarge):
		return s.localizer.Text("VideoTooLarge", -1, map[string]any{"Limit": s.cfg.Selection.MaxVideoMB})
	default:
		return ""
	}
}

// DismissTitle is the label of the button closing an alert.
func (s *Session) DismissTitle() string {
	return s.localizer.Text("Dismiss", -1, nil)
}

// SetOriginal toggles sending originals. It is ignored when the
// configuration does not allow originals.
func (s *Session) SetOriginal(original bool) {
	if !s.cfg.Selection.AllowOriginal {
		return
	}
	s.store.SetOriginal(original)
}

// Summary describes the current selection.
func (s *Session) Summary() Summary {
	return summarize(s.localizer, s.store.Assets())
}

// Footer is the count line under the grid.
func (s *Session) Footer() string {
	return footer(s.localizer, s.assets, s.cfg.Selection.HideVideo)
}

func (s *Session) networkPolicy() fetch.NetworkPolicy {
	if s.cfg.NetworkAllowed {
		return fetch.AllowNetwork
	}
	return fetch.LocalOnly
}

// Thumbnail loads the grid image for asset at target, in points. done runs
// once per rendering that arrives, so a degraded local copy may be followed
// by a downloaded one.
func (s *Session) Thumbnail(asset library.Asset, target geom.Size, done func(image.Image)) {
	if s.closed.Load() {
		return
	}

	px := target.Scaled(s.cfg.Decode.Scale)
	s.fetcher.Fetch(asset, px, s.networkPolicy(), nil, func(img image.Image, info library.Info) {
		s.record(asset, info)
		if img != nil && done != nil {
			done(img)
		}
	})
}

// LoadPreview loads the full-screen image for asset. The original bytes are
// downloaded when needed and decoded at target. progress follows the
// download; done receives either an image or a PipelineError.
func (s *Session) LoadPreview(asset library.Asset, target geom.Size, progress fetch.ProgressFunc, done func(image.Image, error)) {
	if s.closed.Load() {
		done(nil, ErrSessionClosed)
		return
	}

	key := previewKey(asset)
	if img, ok := s.pipeline.CachedImage(key); ok {
		done(img, nil)
		return
	}

	if !s.cfg.NetworkAllowed {
		s.fetcher.Fetch(asset, target.Scaled(s.cfg.Decode.Scale), fetch.LocalOnly, progress, func(img image.Image, info library.Info) {
			s.record(asset, info)
			if img == nil {
				done(nil, NewPipelineError("fetch", s.fetchErr(info)))
				return
			}
			done(img, nil)
		})
		return
	}

	s.fetcher.FetchBytes(asset, progress, func(raw []byte, info library.Info) {
		s.record(asset, info)
		if raw == nil {
			done(nil, NewPipelineError("fetch", s.fetchErr(info)))
			return
		}

		s.pipeline.FetchDecoded(key, raw, target, func(img image.Image) {
			if img == nil {
				done(nil, NewPipelineError("decode", decode.ErrDecodeFailed))
				return
			}
			done(img, nil)
		})
	})
}

// CancelLoad stops any download and pending decode for asset.
func (s *Session) CancelLoad(asset library.Asset) {
	s.fetcher.Cancel(asset)
	s.pipeline.Cancel(previewKey(asset))
}

// CacheStats reports the shared image cache counters.
func (s *Session) CacheStats() internal.CacheStats {
	return s.cache.Stats()
}

func (s *Session) fetchErr(info library.Info) error {
	switch {
	case info.Err != nil:
		return info.Err
	case info.Cancelled:
		return ErrFetchCancelled
	default:
		return errors.New("no data")
	}
}

func (s *Session) record(asset library.Asset, info library.Info) {
	s.mu.Lock()
	s.status[asset.ID] = info
	s.mu.Unlock()
}

// previewKey separates full-screen decodes from grid renderings in the
// shared cache.
func previewKey(asset library.Asset) string {
	return asset.ID + "#preview"
}

// Preview opens the full-screen preview of grid cell. resume records where
// the grid was so it can be restored on the way back.
func (s *Session) Preview(cell int, resume *router.Resume) error {
	if err := s.navigable(); err != nil {
		return err
	}
	if _, ok := s.AssetAtCell(cell); !ok {
		return errors.New("photopicker: no asset at cell")
	}
	_, err := s.router.Advance(openPreview{Index: cell, Resume: resume})
	return err
}

// PreviewSelection opens the preview of the selected assets.
func (s *Session) PreviewSelection() error {
	if err := s.navigable(); err != nil {
		return err
	}
	if s.store.Len() == 0 {
		return errors.New("photopicker: nothing selected")
	}
	_, err := s.router.Advance(openSelection{})
	return err
}

// Back leaves the preview with a non-interactive pop.
func (s *Session) Back() error {
	if err := s.navigable(); err != nil {
		return err
	}
	_, err := s.router.Advance(goBack{})
	return err
}

// PreviewAsset returns the asset the preview screen shows.
func (s *Session) PreviewAsset() (library.Asset, bool) {
	in, ok := s.currentInput().(openPreview)
	if !ok || s.Screen() != router.ScreenPreview {
		return library.Asset{}, false
	}
	return s.AssetAtCell(in.Index)
}

// Resume returns where the grid was when the preview opened, once the grid
// is visible again.
func (s *Session) Resume() *router.Resume {
	resume, _ := s.currentInput().(*router.Resume)
	if s.Screen() != router.ScreenGrid {
		return nil
	}
	return resume
}

func (s *Session) currentInput() any {
	_, input := s.router.Current()
	return input
}

// HandlePan feeds a drag on the preview into the interactive pop.
func (s *Session) HandlePan(pan transition.Pan) {
	if s.machine == nil || s.closed.Load() {
		return
	}

	if pan.Phase != transition.PanBegan {
		s.machine.HandlePan(pan)
		return
	}

	screen := s.Screen()
	if screen != router.ScreenPreview && screen != router.ScreenSelectionPreview {
		return
	}
	below := s.router.Stack().Peek()
	if below == nil || !s.machine.ShouldBegin(pan.Velocity) {
		return
	}

	ctx := s.context(screen, below.Screen)
	ctx.OnComplete = func(completed bool) {
		if !completed {
			return
		}
		if _, err := s.router.Advance(goBack{}); err != nil {
			s.logger.Error("Failed to finish interactive pop", "error", err)
		}
	}
	s.machine.BeginInteractive(ctx, pan)
}

// SetSimultaneousGestures tells the interactive pop that the preview's drag
// is recognised together with its scroll surface. While set, a drag made
// with the scroll surface away from its top stays with the scroll surface
// and the pop is cancelled.
func (s *Session) SetSimultaneousGestures(on bool) {
	if s.machine != nil {
		s.machine.SetSimultaneousGestures(on)
	}
}

// Transitioning reports whether a transition is running. It may be called
// from any goroutine.
func (s *Session) Transitioning() bool {
	return s.machine != nil && s.machine.State() != transition.Idle
}

// Send finishes the picker with the current selection.
func (s *Session) Send() (Result, error) {
	if s.closed.Load() {
		return Result{}, ErrSessionClosed
	}
	if s.store.Len() == 0 {
		return Result{}, errors.New("photopicker: nothing selected")
	}

	if _, err := s.router.Advance(sendSelection{}); err != nil {
		return Result{}, err
	}

	res := Result{
		Assets:    s.store.Assets(),
		Original:  s.store.IsOriginal(),
		MuteVideo: s.store.IsMuteVideo(),
	}
	s.logger.Debug("Picker sent", "count", len(res.Assets), "original", res.Original)
	return res, nil
}

// Close cancels outstanding work and drops the cache.
func (s *Session) Close() {
	if !s.closed.CompareAndSwap(false, true) {
		return
	}
	s.fetcher.Close()
	s.pipeline.Close()
	if s.machine != nil {
		s.machine.Close()
	}
	s.cache.Purge()
	s.logger.Debug("Picker session closed")

	if s.ownUI != nil {
		// Close may itself be running on the queue.
		go s.ownUI.Close()
	}
}

func (s *Session) navigable() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	if s.Transitioning() {
		return ErrTransitionActive
	}
	return nil
}

func (s *Session) route(from router.Screen, result any, stack *router.Stack) (router.Screen, any) {
	switch r := result.(type) {
	case openPreview:
		stack.Push(from, nil, r.Resume)
		return router.ScreenPreview, r
	case openSelection:
		stack.Push(from, nil, nil)
		return router.ScreenSelectionPreview, nil
	case goBack:
		if entry := stack.Pop(); entry != nil {
			return entry.Screen, entry.Resume
		}
		return from, nil
	case sendSelection:
		stack.Clear()
		return router.ScreenExit, nil
	}
	return from, nil
}

func (s *Session) tracking() bool {
	if s.machine == nil {
		return false
	}
	state := s.machine.State()
	return state == transition.InteractiveTracking || state == transition.InteractiveSettling
}

func (s *Session) navigate(op transition.Operation, from, to router.Screen) {
	if s.machine == nil {
		return
	}

	switch op {
	case transition.OperationPush:
		s.machine.Push(s.context(from, to))
	case transition.OperationPop:
		s.machine.Pop(s.context(from, to))
	}
}

func (s *Session) context(from, to router.Screen) *transition.Context {
	ctx := &transition.Context{Screen: s.screen}
	if s.surfaces != nil {
		ctx.From = s.surfaces(from)
		ctx.To = s.surfaces(to)
	}
	return ctx
}
