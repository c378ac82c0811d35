package card

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/host"
	"github.com/grocery-field/card/internal/platform/config"
	"github.com/grocery-field/card/internal/scan"
	"github.com/grocery-field/card/internal/shortcut"
)

type fakeScanner struct {
	mu       sync.Mutex
	snap     scan.Snapshot
	starts   int
	cancels  int
	resets   int
	startErr error
}

func (f *fakeScanner) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.snap.State = domain.StateLiveScanning
	return nil
}

func (f *fakeScanner) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	f.snap = scan.Snapshot{}
}

func (f *fakeScanner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.snap.State == domain.StateConfirm {
		f.snap = scan.Snapshot{}
	}
}

func (f *fakeScanner) EnterManual() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.State == domain.StateFallbackGuidance {
		f.snap = scan.Snapshot{}
	}
}

func (f *fakeScanner) Snapshot() scan.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeScanner) ConfirmedCode() (string, *domain.ProductRecord, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.snap.State != domain.StateConfirm {
		return "", nil, false
	}
	return f.snap.Code, f.snap.Product, true
}

func (f *fakeScanner) confirm(code string, product *domain.ProductRecord) {
	f.mu.Lock()
	f.snap = scan.Snapshot{State: domain.StateConfirm, Code: code, Product: product}
	f.mu.Unlock()
}

func newController(t *testing.T, commands host.CommandChannel) (*Controller, *fakeScanner) {
	t.Helper()
	sc := &fakeScanner{}
	c, err := New(Deps{Session: sc, Commands: commands, Language: "sv"})
	require.NoError(t, err)
	return c, sc
}

func TestNewRequiresSessionAndCommands(t *testing.T) {
	t.Parallel()

	_, err := New(Deps{Commands: &host.Recorder{}})
	require.Error(t, err)
	_, err = New(Deps{Session: &fakeScanner{}})
	require.Error(t, err)
}

func TestCommitAddSendsPayloadAndResets(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, sc := newController(t, rec)
	sc.confirm("7310865004703", &domain.ProductRecord{Name: "Mellanmjölk"})

	err := c.CommitAdd(context.Background(), ConfirmForm{Quantity: 2, Unit: "l", ExpiryDate: "2026-10-20", Location: "freezer"})
	require.NoError(t, err)

	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	require.Equal(t, domain.CommandScanAdd, cmds[0].Name)
	require.Equal(t, map[string]any{
		"barcode":       "7310865004703",
		"quantity":      2,
		"expiry_date":   "2026-10-20",
		"source":        domain.SourceMobile,
		"name_override": "Mellanmjölk",
		"location":      "frys",
		"unit":          "l",
	}, cmds[0].Payload)
	require.Equal(t, domain.StateIdle, sc.Snapshot().State)
	require.Equal(t, 1, sc.resets)
}

func TestCommitAddNamePrecedence(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, sc := newController(t, rec)

	sc.confirm("111", &domain.ProductRecord{Name: "Resolved"})
	require.NoError(t, c.CommitAdd(context.Background(), ConfirmForm{Name: "Typed"}))

	sc.confirm("222", nil)
	require.NoError(t, c.CommitAdd(context.Background(), ConfirmForm{}))

	cmds := rec.Commands()
	require.Len(t, cmds, 2)
	require.Equal(t, "Typed", cmds[0].Payload["name_override"])
	require.Equal(t, 1, cmds[0].Payload["quantity"])
	require.Nil(t, cmds[0].Payload["expiry_date"])
	require.Equal(t, "kyl", cmds[0].Payload["location"])
	require.NotContains(t, cmds[0].Payload, "unit")
	require.Equal(t, "Vara 222", cmds[1].Payload["name_override"])
}

func TestCommitOutsideConfirmIsRejected(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, _ := newController(t, rec)

	require.ErrorIs(t, c.CommitAdd(context.Background(), ConfirmForm{}), ErrNotConfirming)
	require.ErrorIs(t, c.CommitRemove(context.Background()), ErrNotConfirming)
	require.Empty(t, rec.Commands())
}

func TestCommitRejectsInvalidForm(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, sc := newController(t, rec)
	sc.confirm("111", nil)

	err := c.CommitAdd(context.Background(), ConfirmForm{Quantity: 500, ExpiryDate: "tomorrow"})
	require.ErrorIs(t, err, ErrInvalidForm)
	var fe *FormError
	require.ErrorAs(t, err, &fe)
	require.Empty(t, rec.Commands())
	require.Equal(t, domain.StateConfirm, sc.Snapshot().State)
}

func TestCommitFailureIsFlashedAndStillResets(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{Err: errors.New("host down")}
	c, sc := newController(t, rec)
	sc.confirm("111", nil)

	require.NoError(t, c.CommitRemove(context.Background()))
	require.Equal(t, domain.StateIdle, sc.Snapshot().State)

	vm := c.View(time.Now())
	require.NotNil(t, vm.Flash)
	require.Equal(t, FlashError, vm.Flash.Kind)
	require.Equal(t, domain.CommandScanRemove, rec.Commands()[0].Name)
	require.Equal(t, map[string]any{"barcode": "111", "source": domain.SourceMobile}, rec.Commands()[0].Payload)
}

type blockingChannel struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingChannel) Call(ctx context.Context, _ domain.Command) error {
	b.entered <- struct{}{}
	select {
	case <-b.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestSecondCommitWhileFirstIsPendingIsRejected(t *testing.T) {
	t.Parallel()

	ch := &blockingChannel{entered: make(chan struct{}, 1), release: make(chan struct{})}
	c, _ := newController(t, ch)

	done := make(chan error, 1)
	go func() { done <- c.RemoveItem(context.Background(), "a") }()
	<-ch.entered

	require.ErrorIs(t, c.RemoveItem(context.Background(), "b"), ErrCommitInProgress)
	close(ch.release)
	require.NoError(t, <-done)
	require.NoError(t, c.RemoveItem(context.Background(), "c"))
	<-ch.entered
}

func TestCommandTimeoutBoundsTheCall(t *testing.T) {
	t.Parallel()

	ch := &blockingChannel{entered: make(chan struct{}, 1), release: make(chan struct{})}
	sc := &fakeScanner{}
	c, err := New(Deps{Session: sc, Commands: ch, CommandTimeout: 10 * time.Millisecond})
	require.NoError(t, err)

	require.NoError(t, c.RemoveItem(context.Background(), "a"))
	vm := c.View(time.Now())
	require.NotNil(t, vm.Flash)
	require.Equal(t, FlashError, vm.Flash.Kind)
}

func TestManualAdd(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, _ := newController(t, rec)

	err := c.ManualAdd(context.Background(), ManualForm{Name: "Ägg", Quantity: 12, Category: "mejeri", Location: "pantry", MinQuantity: 6})
	require.NoError(t, err)
	cmds := rec.Commands()
	require.Len(t, cmds, 1)
	require.Equal(t, domain.CommandManualAdd, cmds[0].Name)
	require.Equal(t, map[string]any{
		"name":         "Ägg",
		"quantity":     12,
		"unit":         "st",
		"category":     "mejeri",
		"expiry_date":  nil,
		"barcode":      "",
		"location":     "skafferi",
		"min_quantity": 6,
	}, cmds[0].Payload)
	require.Equal(t, FlashInfo, c.View(time.Now()).Flash.Kind)
}

func TestManualAddWithoutNameFlashesAndSendsNothing(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, _ := newController(t, rec)

	err := c.ManualAdd(context.Background(), ManualForm{Name: "   "})
	require.ErrorIs(t, err, ErrInvalidForm)
	require.Empty(t, rec.Commands())
	vm := c.View(time.Now())
	require.Equal(t, "Ange ett produktnamn!", vm.Flash.Message)
}

func TestSaveExpiryAndRemoveItem(t *testing.T) {
	t.Parallel()

	rec := &host.Recorder{}
	c, _ := newController(t, rec)
	c.EditExpiry("item-1")

	require.NoError(t, c.SaveExpiry(context.Background(), "item-1", ExpiryForm{ExpiryDate: ""}))
	require.NoError(t, c.RemoveItem(context.Background(), "item-2"))
	require.Error(t, c.RemoveItem(context.Background(), " "))

	cmds := rec.Commands()
	require.Len(t, cmds, 2)
	require.Equal(t, domain.Command{Name: domain.CommandSetExpiry, Payload: map[string]any{"item_id": "item-1", "expiry_date": nil}}, cmds[0])
	require.Equal(t, domain.Command{Name: domain.CommandManualRemove, Payload: map[string]any{"item_id": "item-2"}}, cmds[1])

	c.mu.Lock()
	editing := c.editing
	c.mu.Unlock()
	require.Empty(t, editing)
}

func TestSwitchTabCancelsScan(t *testing.T) {
	t.Parallel()

	c, sc := newController(t, &host.Recorder{})
	require.NoError(t, c.StartScan(context.Background()))
	require.Equal(t, domain.StateLiveScanning, sc.Snapshot().State)

	c.SwitchTab(TabInventory)
	require.Equal(t, TabInventory, c.Tab())
	require.Equal(t, domain.StateIdle, sc.Snapshot().State)
	require.Equal(t, 1, sc.cancels)

	require.ErrorIs(t, c.StartScan(context.Background()), ErrWrongTab)
	require.Equal(t, 1, sc.starts)
}

func TestEnterManualSwitchesTab(t *testing.T) {
	t.Parallel()

	c, sc := newController(t, &host.Recorder{})
	sc.mu.Lock()
	sc.snap.State = domain.StateFallbackGuidance
	sc.mu.Unlock()

	c.EnterManual()
	require.Equal(t, TabManual, c.Tab())
	require.Equal(t, domain.StateIdle, sc.Snapshot().State)
}

func TestOpenAutomationLaunchesShortcut(t *testing.T) {
	t.Parallel()

	nav := &shortcut.NavigationLauncher{}
	sc := &fakeScanner{}
	c, err := New(Deps{Session: sc, Commands: &host.Recorder{}, Launcher: nav})
	require.NoError(t, err)

	uri, err := c.OpenAutomation(context.Background(), AutomationAdd)
	require.NoError(t, err)
	require.Equal(t, "shortcuts://run-shortcut?name=L%C3%A4gg%20till%20vara", uri)
	require.Equal(t, []string{uri}, nav.Take())

	_, err = c.OpenAutomation(context.Background(), "other")
	require.ErrorIs(t, err, ErrUnknownAutomation)
	require.Equal(t, TabScan, c.Tab())
}

func TestViewInventoryRanksAndFilters(t *testing.T) {
	t.Parallel()

	c, _ := newController(t, &host.Recorder{})
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	day := func(s string) *time.Time {
		d, err := domain.ParseDay(s)
		require.NoError(t, err)
		return &d
	}
	c.UpdateHost(domain.HostSnapshot{
		Items: []domain.InventoryItem{
			{ID: "1", Name: "Smör", Quantity: 1, Category: "Mejeri", Location: domain.LocationFridge},
			{ID: "2", Name: "Fisk", Quantity: 1, ExpiryDate: day("2026-10-15"), Location: domain.LocationFreezer},
			{ID: "3", Name: "Mjölk", Quantity: 1, ExpiryDate: day("2026-10-16")},
			{ID: "4", Name: "Ris", Quantity: 1, MinQuantity: 2, Location: domain.LocationPantry},
		},
		Expired:  1,
		LowStock: 1,
	})
	c.SwitchTab(TabInventory)
	c.EditExpiry("3")

	vm := c.View(now)
	require.Equal(t, 2, vm.Badge)
	require.Nil(t, vm.Scan)
	require.NotNil(t, vm.Inventory)
	inv := vm.Inventory
	require.False(t, inv.Empty)
	require.Len(t, inv.Filters, 4)
	require.Equal(t, 4, inv.Filters[0].Count)
	require.Equal(t, 2, inv.Filters[1].Count)

	ids := make([]string, 0, len(inv.Items))
	for _, it := range inv.Items {
		ids = append(ids, it.ID)
	}
	require.Equal(t, []string{"2", "3", "4", "1"}, ids)
	require.Equal(t, "expired", inv.Items[0].Urgency)
	require.True(t, inv.Items[1].Editing)
	require.Equal(t, "2026-10-16", inv.Items[1].ExpiryDate)
	require.NotEmpty(t, inv.Items[2].LowStockText)
	require.Equal(t, "🥛", inv.Items[3].Emoji)

	c.SetLocationFilter(domain.FilterAll)
	c.SetLocationFilter(domain.LocationFilter(domain.LocationFridge))
	vm = c.View(now)
	require.Len(t, vm.Inventory.Items, 2)
}

func TestViewScanStates(t *testing.T) {
	t.Parallel()

	show := false
	cfg := config.DefaultCardConfig()
	cfg.ShowFallbackGuide = &show
	sc := &fakeScanner{}
	c, err := New(Deps{Config: cfg, Session: sc, Commands: &host.Recorder{}})
	require.NoError(t, err)

	vm := c.View(time.Now())
	require.Equal(t, "idle", vm.Scan.State)
	require.False(t, vm.Scan.Refresh)

	sc.mu.Lock()
	sc.snap = scan.Snapshot{State: domain.StateIdle, Notice: scan.Notice{Kind: scan.NoticePermissionDenied, Message: "NotAllowedError"}}
	sc.mu.Unlock()
	vm = c.View(time.Now())
	require.NotNil(t, vm.Scan.Notice)
	require.Equal(t, "NotAllowedError", vm.Scan.Notice.Detail)

	sc.mu.Lock()
	sc.snap = scan.Snapshot{State: domain.StateConfirm, Code: "4006381333931", Resolving: true}
	sc.mu.Unlock()
	vm = c.View(time.Now())
	require.True(t, vm.Scan.Refresh)
	require.Equal(t, "4006381333931", vm.Scan.Confirm.Code)
	require.False(t, vm.Scan.Confirm.NeedsName)

	sc.mu.Lock()
	sc.snap.Resolving = false
	sc.mu.Unlock()
	vm = c.View(time.Now())
	require.True(t, vm.Scan.Confirm.NeedsName)
	require.False(t, vm.Scan.Refresh)

	sc.mu.Lock()
	sc.snap = scan.Snapshot{State: domain.StateFallbackGuidance}
	sc.mu.Unlock()
	vm = c.View(time.Now())
	require.NotNil(t, vm.Scan.Guide)
	require.False(t, vm.Scan.Guide.Enabled)
	require.Empty(t, vm.Scan.Guide.Markdown)
	require.NotEmpty(t, vm.Scan.Guide.AddURI)
}
