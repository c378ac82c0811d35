// Package card is the scanner card controller: it owns the tab state, routes
// user events to the scan session and the host, and projects everything into
// a ViewModel.
package card

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/host"
	"github.com/grocery-field/card/internal/i18n"
	"github.com/grocery-field/card/internal/inventory"
	"github.com/grocery-field/card/internal/platform/config"
	"github.com/grocery-field/card/internal/scan"
	"github.com/grocery-field/card/internal/shortcut"
)

var (
	// ErrCommitInProgress is returned while another commit awaits the host.
	ErrCommitInProgress = errors.New("card: commit in progress")
	// ErrNotConfirming is returned by confirm actions outside the Confirm state.
	ErrNotConfirming = errors.New("card: no scanned code to confirm")
	// ErrWrongTab is returned when an event does not belong to the active tab.
	ErrWrongTab = errors.New("card: action not available on this tab")
	// ErrUnknownAutomation is returned for an automation kind other than add or remove.
	ErrUnknownAutomation = errors.New("card: unknown automation")
)

// Tab is one of the card's three tabs.
type Tab string

const (
	TabScan      Tab = "scan"
	TabManual    Tab = "manual"
	TabInventory Tab = "inventory"
)

// Tabs lists the tabs in display order.
var Tabs = []Tab{TabScan, TabManual, TabInventory}

// ParseTab validates a tab name.
func ParseTab(raw string) (Tab, bool) {
	switch t := Tab(strings.ToLower(strings.TrimSpace(raw))); t {
	case TabScan, TabManual, TabInventory:
		return t, true
	}
	return "", false
}

// Automation kinds.
const (
	AutomationAdd    = "add"
	AutomationRemove = "remove"
)

// Scanner is the scan session the card drives.
type Scanner interface {
	Start(ctx context.Context) error
	Cancel()
	Reset()
	EnterManual()
	Snapshot() scan.Snapshot
	ConfirmedCode() (string, *domain.ProductRecord, bool)
}

// Deps wires a Controller.
type Deps struct {
	Config         config.CardConfig
	Session        Scanner
	Commands       host.CommandChannel
	Launcher       shortcut.Launcher
	Bundle         *i18n.Bundle
	Language       string
	Ranker         inventory.Ranker
	CommandTimeout time.Duration
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

// Controller holds one card instance.
type Controller struct {
	cfg        config.CardConfig
	session    Scanner
	commands   host.CommandChannel
	launcher   shortcut.Launcher
	bundle     *i18n.Bundle
	lang       string
	ranker     inventory.Ranker
	timeout    time.Duration
	logger     func(ctx context.Context, event string, fields map[string]any)
	validate   *validator.Validate
	defaultLoc domain.Location

	committing atomic.Bool

	mu      sync.Mutex
	tab     Tab
	filter  domain.LocationFilter
	editing string
	host    domain.HostSnapshot
	flash   Flash
}

// Flash is a one-line message about the last user action.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Flash kinds.
const (
	FlashInfo  = "info"
	FlashError = "error"
)

// New validates deps and returns a controller on the scan tab.
func New(deps Deps) (*Controller, error) {
	if deps.Session == nil {
		return nil, errors.New("card: scan session is required")
	}
	if deps.Commands == nil {
		return nil, errors.New("card: command channel is required")
	}
	bundle := deps.Bundle
	if bundle == nil {
		b, err := i18n.Default()
		if err != nil {
			return nil, fmt.Errorf("card: load labels: %w", err)
		}
		bundle = b
	}
	cfg := deps.Config
	if cfg.ShortcutAddName == "" && cfg.ShortcutRemove == "" && cfg.Title == "" {
		cfg = config.DefaultCardConfig()
	}
	defaultLoc, _ := domain.ParseLocation(cfg.DefaultLocation)
	lang := strings.TrimSpace(deps.Language)
	if lang == "" {
		lang = bundle.Fallback()
	}
	launcher := deps.Launcher
	if launcher == nil {
		launcher = &shortcut.NavigationLauncher{}
	}
	return &Controller{
		cfg:        cfg,
		session:    deps.Session,
		commands:   deps.Commands,
		launcher:   launcher,
		bundle:     bundle,
		lang:       lang,
		ranker:     deps.Ranker,
		timeout:    deps.CommandTimeout,
		logger:     deps.Logger,
		validate:   newValidator(),
		defaultLoc: defaultLoc.Effective(),
		tab:        TabScan,
		filter:     domain.FilterAll,
	}, nil
}

// Tab returns the active tab.
func (c *Controller) Tab() Tab {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tab
}

// SessionID returns the id of the current scan session, if any.
func (c *Controller) SessionID() string {
	return c.session.Snapshot().ID
}

// SwitchTab tears down any scan and activates tab.
func (c *Controller) SwitchTab(tab Tab) {
	c.session.Cancel()
	c.mu.Lock()
	c.tab = tab
	c.editing = ""
	c.flash = Flash{}
	c.mu.Unlock()
}

// StartScan runs the permission check and, when granted, starts live scanning.
func (c *Controller) StartScan(ctx context.Context) error {
	if c.Tab() != TabScan {
		return ErrWrongTab
	}
	c.clearFlash()
	return c.session.Start(ctx)
}

// CancelScan stops the camera and returns to idle.
func (c *Controller) CancelScan() {
	c.session.Cancel()
}

// Rescan discards the confirmed code.
func (c *Controller) Rescan() {
	c.session.Reset()
}

// EnterManual leaves the fallback guidance for the manual tab.
func (c *Controller) EnterManual() {
	c.session.EnterManual()
	c.mu.Lock()
	c.tab = TabManual
	c.mu.Unlock()
}

// CommitAdd sends the confirmed code to the host as an add. The session
// returns to idle whatever the host answers.
func (c *Controller) CommitAdd(ctx context.Context, form ConfirmForm) error {
	code, product, ok := c.session.ConfirmedCode()
	if !ok {
		return ErrNotConfirming
	}
	form.normalize()
	if err := validateForm(c.validate, form); err != nil {
		return err
	}
	name := form.Name
	if name == "" && product != nil {
		name = product.Name
	}
	if name == "" {
		name = c.bundle.Tf(c.lang, "confirm.fallback_name", code)
	}
	payload := map[string]any{
		"barcode":       code,
		"quantity":      form.Quantity,
		"expiry_date":   expiryValue(form.ExpiryDate),
		"source":        domain.SourceMobile,
		"name_override": name,
		"location":      locationCode(form.Location, c.defaultLoc),
	}
	if form.Unit != "" {
		payload["unit"] = form.Unit
	}
	return c.commit(ctx, domain.Command{Name: domain.CommandScanAdd, Payload: payload}, c.session.Reset, c.bundle.Tf(c.lang, "manual.added", name))
}

// CommitRemove asks the host to remove one unit of the confirmed code.
func (c *Controller) CommitRemove(ctx context.Context) error {
	code, _, ok := c.session.ConfirmedCode()
	if !ok {
		return ErrNotConfirming
	}
	cmd := domain.Command{Name: domain.CommandScanRemove, Payload: map[string]any{
		"barcode": code,
		"source":  domain.SourceMobile,
	}}
	return c.commit(ctx, cmd, c.session.Reset, "")
}

// ManualAdd adds an item typed by the user.
func (c *Controller) ManualAdd(ctx context.Context, form ManualForm) error {
	form.normalize()
	if err := validateForm(c.validate, form); err != nil {
		msg := c.bundle.T(c.lang, "form.invalid")
		var fe *FormError
		if errors.As(err, &fe) && onlyField(fe, "name") {
			msg = c.bundle.T(c.lang, "manual.name_required")
		}
		c.setFlash(FlashError, msg)
		return err
	}
	cmd := domain.Command{Name: domain.CommandManualAdd, Payload: map[string]any{
		"name":         form.Name,
		"quantity":     form.Quantity,
		"unit":         form.Unit,
		"category":     form.Category,
		"expiry_date":  expiryValue(form.ExpiryDate),
		"barcode":      form.Barcode,
		"location":     locationCode(form.Location, c.defaultLoc),
		"min_quantity": form.MinQuantity,
	}}
	return c.commit(ctx, cmd, nil, c.bundle.Tf(c.lang, "manual.added", form.Name))
}

// SetLocationFilter changes the inventory filter.
func (c *Controller) SetLocationFilter(filter domain.LocationFilter) {
	c.mu.Lock()
	c.filter = filter
	c.mu.Unlock()
}

// EditExpiry opens the inline date editor for an item.
func (c *Controller) EditExpiry(itemID string) {
	c.mu.Lock()
	c.editing = strings.TrimSpace(itemID)
	c.mu.Unlock()
}

// CancelExpiryEdit closes the inline date editor.
func (c *Controller) CancelExpiryEdit() {
	c.mu.Lock()
	c.editing = ""
	c.mu.Unlock()
}

// SaveExpiry sets or clears an item's best-before date.
func (c *Controller) SaveExpiry(ctx context.Context, itemID string, form ExpiryForm) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return &FormError{Fields: []FieldError{{Field: "item_id", Rule: "required"}}}
	}
	form.ExpiryDate = strings.TrimSpace(form.ExpiryDate)
	if err := validateForm(c.validate, form); err != nil {
		return err
	}
	cmd := domain.Command{Name: domain.CommandSetExpiry, Payload: map[string]any{
		"item_id":     itemID,
		"expiry_date": expiryValue(form.ExpiryDate),
	}}
	return c.commit(ctx, cmd, c.CancelExpiryEdit, "")
}

// RemoveItem removes an inventory item.
func (c *Controller) RemoveItem(ctx context.Context, itemID string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return &FormError{Fields: []FieldError{{Field: "item_id", Rule: "required"}}}
	}
	cmd := domain.Command{Name: domain.CommandManualRemove, Payload: map[string]any{"item_id": itemID}}
	return c.commit(ctx, cmd, nil, "")
}

// UpdateHost replaces the host snapshot the views are projected from.
func (c *Controller) UpdateHost(snap domain.HostSnapshot) {
	c.mu.Lock()
	c.host = snap
	c.mu.Unlock()
}

// OpenAutomation launches the configured add or remove automation. It does
// not change card state.
func (c *Controller) OpenAutomation(ctx context.Context, kind string) (string, error) {
	var name string
	switch kind {
	case AutomationAdd:
		name = c.cfg.ShortcutAddName
	case AutomationRemove:
		name = c.cfg.ShortcutRemove
	default:
		return "", ErrUnknownAutomation
	}
	uri, err := shortcut.URI(name)
	if err != nil {
		return "", err
	}
	if err := c.launcher.Launch(ctx, uri); err != nil {
		c.log(ctx, "card.automation.failed", map[string]any{"kind": kind, "error": err})
		return "", err
	}
	return uri, nil
}

// commit sends cmd unless another commit is outstanding. Host failures are
// logged and flashed, not returned; after runs whatever the outcome.
func (c *Controller) commit(ctx context.Context, cmd domain.Command, after func(), success string) error {
	if !c.committing.CompareAndSwap(false, true) {
		return ErrCommitInProgress
	}
	defer c.committing.Store(false)

	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	err := c.commands.Call(callCtx, cmd)
	if after != nil {
		after()
	}
	if err != nil {
		c.log(ctx, "card.commit.failed", map[string]any{"command": cmd.Name, "error": err})
		c.setFlash(FlashError, c.bundle.T(c.lang, "commit.failed"))
		return nil
	}
	c.log(ctx, "card.commit", map[string]any{"command": cmd.Name})
	if success != "" {
		c.setFlash(FlashInfo, success)
	} else {
		c.clearFlash()
	}
	return nil
}

func (c *Controller) setFlash(kind, message string) {
	c.mu.Lock()
	c.flash = Flash{Kind: kind, Message: message}
	c.mu.Unlock()
}

func (c *Controller) clearFlash() {
	c.mu.Lock()
	c.flash = Flash{}
	c.mu.Unlock()
}

func (c *Controller) log(ctx context.Context, event string, fields map[string]any) {
	if c.logger != nil {
		c.logger(ctx, event, fields)
	}
}

func onlyField(fe *FormError, field string) bool {
	for _, f := range fe.Fields {
		if f.Field != field {
			return false
		}
	}
	return len(fe.Fields) > 0
}
