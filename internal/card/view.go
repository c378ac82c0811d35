package card

import (
	"time"

	"github.com/grocery-field/card/internal/domain"
	"github.com/grocery-field/card/internal/inventory"
	"github.com/grocery-field/card/internal/scan"
	"github.com/grocery-field/card/internal/shortcut"
)

// ViewModel is everything the front-end needs to draw the card.
type ViewModel struct {
	Lang      string         `json:"lang"`
	Title     string         `json:"title"`
	Tab       Tab            `json:"tab"`
	Tabs      []TabView      `json:"tabs"`
	Badge     int            `json:"badge"`
	Flash     *Flash         `json:"flash,omitempty"`
	Scan      *ScanView      `json:"scan,omitempty"`
	Manual    *ManualView    `json:"manual,omitempty"`
	Inventory *InventoryView `json:"inventory,omitempty"`
}

type TabView struct {
	ID     Tab    `json:"id"`
	Label  string `json:"label"`
	Active bool   `json:"active"`
	Badge  int    `json:"badge,omitempty"`
}

type Option struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Selected bool   `json:"selected,omitempty"`
}

type ScanView struct {
	State     string       `json:"state"`
	SessionID string       `json:"session_id,omitempty"`
	Strategy  string       `json:"strategy,omitempty"`
	Message   string       `json:"message,omitempty"`
	Notice    *NoticeView  `json:"notice,omitempty"`
	Confirm   *ConfirmView `json:"confirm,omitempty"`
	Guide     *GuideView   `json:"guide,omitempty"`
	// Refresh asks polling front-ends to reload while work is in flight.
	Refresh bool `json:"refresh"`
}

type NoticeView struct {
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

type ConfirmView struct {
	Code      string                `json:"code"`
	Heading   string                `json:"heading"`
	Meta      string                `json:"meta,omitempty"`
	ImageURL  string                `json:"image_url,omitempty"`
	Resolving bool                  `json:"resolving"`
	NeedsName bool                  `json:"needs_name"`
	Product   *domain.ProductRecord `json:"product,omitempty"`
	Units     []string              `json:"units"`
	Locations []Option              `json:"locations"`
}

type GuideView struct {
	Enabled     bool   `json:"enabled"`
	Markdown    string `json:"markdown,omitempty"`
	AddName     string `json:"add_name"`
	AddURI      string `json:"add_uri,omitempty"`
	RemoveName  string `json:"remove_name"`
	RemoveURI   string `json:"remove_uri,omitempty"`
	AddLabel    string `json:"add_label"`
	RemoveLabel string `json:"remove_label"`
}

type ManualView struct {
	Units      []string `json:"units"`
	Categories []string `json:"categories"`
	Locations  []Option `json:"locations"`
}

type InventoryView struct {
	Filters []FilterView `json:"filters"`
	Summary string       `json:"summary"`
	// Empty is set when the host has no items at all.
	Empty bool       `json:"empty"`
	Items []ItemView `json:"items"`
}

type FilterView struct {
	Value  domain.LocationFilter `json:"value"`
	Label  string                `json:"label"`
	Count  int                   `json:"count"`
	Active bool                  `json:"active"`
}

type ItemView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Emoji         string `json:"emoji"`
	Quantity      int    `json:"quantity"`
	Unit          string `json:"unit,omitempty"`
	LocationEmoji string `json:"location_emoji,omitempty"`
	Urgency       string `json:"urgency"`
	ExpiryDate    string `json:"expiry_date,omitempty"`
	ExpiryText    string `json:"expiry_text,omitempty"`
	LowStockText  string `json:"low_stock_text,omitempty"`
	Editing       bool   `json:"editing"`
}

// View projects the current state. It has no side effects.
func (c *Controller) View(now time.Time) ViewModel {
	snap := c.session.Snapshot()

	c.mu.Lock()
	tab := c.tab
	filter := c.filter
	editing := c.editing
	hostSnap := c.host
	flash := c.flash
	c.mu.Unlock()

	t := func(key string) string { return c.bundle.T(c.lang, key) }

	vm := ViewModel{
		Lang:  c.lang,
		Title: c.cfg.Title,
		Tab:   tab,
		Badge: hostSnap.Badge(),
	}
	for _, id := range Tabs {
		tv := TabView{ID: id, Label: t("tab." + string(id)), Active: id == tab}
		if id == TabInventory {
			tv.Badge = vm.Badge
		}
		vm.Tabs = append(vm.Tabs, tv)
	}
	if flash.Message != "" {
		f := flash
		vm.Flash = &f
	}

	switch tab {
	case TabScan:
		vm.Scan = c.scanView(snap)
	case TabManual:
		vm.Manual = &ManualView{
			Units:      append([]string(nil), ManualUnits...),
			Categories: append([]string(nil), Categories...),
			Locations:  c.locationOptions(),
		}
	case TabInventory:
		vm.Inventory = c.inventoryView(hostSnap, filter, editing, now)
	}
	return vm
}

func (c *Controller) scanView(snap scan.Snapshot) *ScanView {
	t := func(key string) string { return c.bundle.T(c.lang, key) }
	sv := &ScanView{
		State:     snap.State.String(),
		SessionID: snap.ID,
		Strategy:  snap.Strategy,
	}
	switch snap.State {
	case domain.StateIdle:
		sv.Message = t("scan.idle.hint")
		if snap.Notice.Kind != scan.NoticeNone {
			sv.Notice = c.noticeView(snap.Notice)
		}
	case domain.StateCheckingPermission:
		sv.Message = t("scan.checking")
		sv.Refresh = true
	case domain.StateLiveScanning:
		sv.Message = t("scan.live.hint")
		sv.Refresh = true
	case domain.StateConfirm:
		sv.Confirm = c.confirmView(snap)
		sv.Refresh = snap.Resolving
	case domain.StateFallbackGuidance:
		sv.Guide = c.guideView()
	}
	return sv
}

func (c *Controller) noticeView(n scan.Notice) *NoticeView {
	nv := &NoticeView{Kind: string(n.Kind)}
	switch n.Kind {
	case scan.NoticePermissionDenied:
		nv.Title = c.bundle.T(c.lang, "notice.permission_denied")
		nv.Detail = n.Message
	case scan.NoticeCameraError:
		nv.Title = c.bundle.Tf(c.lang, "notice.camera_error", n.Message)
	case scan.NoticeDecoderUnavailable:
		nv.Title = c.bundle.T(c.lang, "notice.decoder_unavailable")
	default:
		nv.Title = n.Message
	}
	return nv
}

func (c *Controller) confirmView(snap scan.Snapshot) *ConfirmView {
	cv := &ConfirmView{
		Code:      snap.Code,
		Resolving: snap.Resolving,
		Units:     append([]string(nil), ScanUnits...),
		Locations: c.locationOptions(),
	}
	name := ""
	if p := snap.Product; p != nil {
		cp := *p
		cv.Product = &cp
		name = p.Name
		cv.ImageURL = p.ImageURL
		cv.Meta = joinNonEmpty(" · ", p.Brand, p.Category)
	}
	cv.Heading = name
	if name == "" {
		cv.Heading = c.bundle.Tf(c.lang, "confirm.barcode", snap.Code)
	}
	cv.NeedsName = name == "" && !snap.Resolving
	return cv
}

func (c *Controller) guideView() *GuideView {
	gv := &GuideView{
		Enabled:     c.cfg.GuideEnabled(),
		AddName:     c.cfg.ShortcutAddName,
		RemoveName:  c.cfg.ShortcutRemove,
		AddLabel:    c.bundle.Tf(c.lang, "guide.open", c.cfg.ShortcutAddName),
		RemoveLabel: c.bundle.Tf(c.lang, "guide.open", c.cfg.ShortcutRemove),
	}
	if gv.Enabled {
		gv.Markdown = c.bundle.Guide(c.lang, c.cfg.ShortcutAddName, c.cfg.ShortcutRemove)
	}
	gv.AddURI, _ = shortcut.URI(c.cfg.ShortcutAddName)
	gv.RemoveURI, _ = shortcut.URI(c.cfg.ShortcutRemove)
	return gv
}

func (c *Controller) locationOptions() []Option {
	out := make([]Option, 0, len(domain.Locations))
	for _, loc := range domain.Locations {
		out = append(out, Option{
			Value:    string(loc),
			Label:    c.bundle.T(c.lang, "location."+string(loc)),
			Selected: loc == c.defaultLoc,
		})
	}
	return out
}

func (c *Controller) inventoryView(snap domain.HostSnapshot, filter domain.LocationFilter, editing string, now time.Time) *InventoryView {
	t := func(key string) string { return c.bundle.T(c.lang, key) }
	counts := inventory.CountByLocation(snap.Items)

	iv := &InventoryView{Empty: len(snap.Items) == 0}
	iv.Filters = append(iv.Filters, FilterView{
		Value:  domain.FilterAll,
		Label:  t("location.all"),
		Count:  counts.All,
		Active: filter == domain.FilterAll,
	})
	for _, loc := range domain.Locations {
		iv.Filters = append(iv.Filters, FilterView{
			Value:  domain.LocationFilter(loc),
			Label:  t("location." + string(loc)),
			Count:  counts.ByLocation[loc],
			Active: filter == domain.LocationFilter(loc),
		})
	}
	if iv.Empty {
		iv.Summary = t("inventory.empty")
		return iv
	}

	ranked := c.ranker.Rank(snap.Items, filter, now)
	if filter == domain.FilterAll {
		iv.Summary = c.bundle.Tf(c.lang, "inventory.count_all", len(ranked))
	} else {
		iv.Summary = c.bundle.Tf(c.lang, "inventory.count_in", len(ranked), t("location."+string(filter)))
	}

	iv.Items = make([]ItemView, 0, len(ranked))
	for _, r := range ranked {
		item := r.Item
		v := ItemView{
			ID:            item.ID,
			Name:          item.Name,
			Emoji:         CategoryEmoji(item.Category),
			Quantity:      item.Quantity,
			Unit:          item.Unit,
			LocationEmoji: LocationEmoji(item.Location),
			Urgency:       r.Urgency.String(),
			Editing:       editing != "" && editing == item.ID,
		}
		if item.ExpiryDate != nil {
			v.ExpiryDate = item.ExpiryDate.Format(time.DateOnly)
			switch r.Urgency {
			case domain.RankExpired:
				v.ExpiryText = c.bundle.Tf(c.lang, "expiry.expired", v.ExpiryDate)
			case domain.RankExpiringSoon:
				v.ExpiryText = c.bundle.Tf(c.lang, "expiry.soon", v.ExpiryDate)
			default:
				v.ExpiryText = c.bundle.Tf(c.lang, "expiry.normal", v.ExpiryDate)
			}
		}
		if item.LowStock() {
			v.LowStockText = c.bundle.Tf(c.lang, "stock.low", item.MinQuantity, item.Unit)
		}
		iv.Items = append(iv.Items, v)
	}
	return iv
}

func joinNonEmpty(sep string, parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += sep
		}
		out += p
	}
	return out
}
