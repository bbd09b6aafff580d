// Package reconcile attaches gallery images to purchase order line items one item at a time.
//
// Machine holds the loop state and is driven purely by method calls; Runner
// executes its commands against a Fetcher with real delays.
package reconcile

import "time"

const (
	DefaultMaxRetryAttempts = 3
	DefaultRetryDelay       = 2000 * time.Millisecond
	DefaultSkipDelay        = 100 * time.Millisecond
	DefaultSettleDelay      = 500 * time.Millisecond
)

// Source where an image came from
type Source string

const (
	SourceLocal  Source = "local"  // selected in this session, not uploaded yet
	SourceRemote Source = "remote" // already in the gallery
)

// Image an image attached to a line item
type Image struct {
	ID           int64  `json:"id"`
	ItemID       int64  `json:"item_id"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Filename     string `json:"filename"`
	Type         string `json:"type"`
	Description  string `json:"description,omitempty"`
	Source       Source `json:"source"`
}

// Item a line item as seen by the loop. ID 0 means not created yet.
type Item struct {
	ID           int64   `json:"id"`
	Images       []Image `json:"images"`
	ImagesLoaded bool    `json:"images_loaded"`
}

// Record one gallery row returned by the remote service
type Record struct {
	ID           int64
	FKItemID     int64
	URL          string
	ThumbnailURL string
	Filename     string
	Type         string
	Description  string
}

// Image converts a gallery record into a remote image.
func (r Record) Image() Image {
	return Image{
		ID:           r.ID,
		ItemID:       r.FKItemID,
		URL:          r.URL,
		ThumbnailURL: r.ThumbnailURL,
		Filename:     r.Filename,
		Type:         r.Type,
		Description:  r.Description,
		Source:       SourceRemote,
	}
}

// Kind what the driver must do next
type Kind int

const (
	// KindIgnore nothing changed; the response was stale or unexpected
	KindIgnore Kind = iota
	// KindFetch fetch the gallery of ItemID after Delay
	KindFetch
	// KindAdvance wait Delay then call Advance
	KindAdvance
	// KindDone every item has been visited
	KindDone
)

func (k Kind) String() string {
	switch k {
	case KindFetch:
		return "fetch"
	case KindAdvance:
		return "advance"
	case KindDone:
		return "done"
	}
	return "ignore"
}

// Command next step for the driver
type Command struct {
	Kind   Kind
	ItemID int64
	Delay  time.Duration
}

// Options retry and pacing parameters; zero values fall back to the defaults
type Options struct {
	MaxRetryAttempts int
	RetryDelay       time.Duration
	SkipDelay        time.Duration
	SettleDelay      time.Duration
}

// DefaultOptions 3 attempts, 2s retry delay, 100ms skip, 500ms settle.
func DefaultOptions() Options {
	return Options{
		MaxRetryAttempts: DefaultMaxRetryAttempts,
		RetryDelay:       DefaultRetryDelay,
		SkipDelay:        DefaultSkipDelay,
		SettleDelay:      DefaultSettleDelay,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxRetryAttempts <= 0 {
		o.MaxRetryAttempts = d.MaxRetryAttempts
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.SkipDelay <= 0 {
		o.SkipDelay = d.SkipDelay
	}
	if o.SettleDelay <= 0 {
		o.SettleDelay = d.SettleDelay
	}
	return o
}

// Stats counters for one pass
type Stats struct {
	Fetches       int `json:"fetches"`
	Loaded        int `json:"loaded"`
	GaveUp        int `json:"gave_up"`
	Skipped       int `json:"skipped"`
	AlreadyLoaded int `json:"already_loaded"`
	Ignored       int `json:"ignored"`
}

// Machine sequential reconciliation state.
// Not safe for concurrent use; one driver owns it.
type Machine struct {
	opts    Options
	items   []Item
	index   int
	active  int64
	retries map[int64]int
	done    bool
	stats   Stats
}

func NewMachine(opts Options) *Machine {
	return &Machine{
		opts:    opts.withDefaults(),
		retries: make(map[int64]int),
	}
}

// Start begins a pass over items from the first one. Retry counters are cleared.
func (m *Machine) Start(items []Item) Command {
	m.items = make([]Item, len(items))
	copy(m.items, items)
	m.index = 0
	m.active = 0
	m.done = false
	m.retries = make(map[int64]int)
	m.stats = Stats{}
	return m.step()
}

// Restart re-runs the loop over a freshly loaded list.
func (m *Machine) Restart(items []Item) Command {
	return m.Start(items)
}

// Advance moves past the current item.
func (m *Machine) Advance() Command {
	if m.done {
		return Command{Kind: KindDone}
	}
	m.active = 0
	m.index++
	return m.step()
}

// OnSuccess handles a gallery batch fetched for itemID.
func (m *Machine) OnSuccess(itemID int64, records []Record) Command {
	if m.done || m.active == 0 || itemID != m.active {
		m.stats.Ignored++
		return Command{Kind: KindIgnore}
	}
	if len(records) == 0 {
		return m.fail(itemID)
	}

	images := make([]Image, 0, len(records))
	for _, r := range records {
		if r.FKItemID == m.active {
			images = append(images, r.Image())
		}
	}
	if len(images) == 0 {
		m.stats.Ignored++
		return Command{Kind: KindIgnore}
	}

	m.retries[itemID] = 0
	m.settle(images)
	m.stats.Loaded++
	return Command{Kind: KindAdvance, Delay: m.opts.SettleDelay}
}

// OnError handles a failed gallery fetch for itemID.
func (m *Machine) OnError(itemID int64, _ error) Command {
	if m.done || m.active == 0 || itemID != m.active {
		m.stats.Ignored++
		return Command{Kind: KindIgnore}
	}
	return m.fail(itemID)
}

func (m *Machine) fail(itemID int64) Command {
	attempts := m.retries[itemID] + 1
	if attempts < m.opts.MaxRetryAttempts {
		m.retries[itemID] = attempts
		m.stats.Fetches++
		return Command{Kind: KindFetch, ItemID: itemID, Delay: m.opts.RetryDelay}
	}
	m.retries[itemID] = attempts
	m.settle([]Image{})
	m.stats.GaveUp++
	return Command{Kind: KindAdvance, Delay: m.opts.SettleDelay}
}

// settle marks the current item loaded with images and clears the active id.
func (m *Machine) settle(images []Image) {
	it := &m.items[m.index]
	it.Images = images
	it.ImagesLoaded = true
	m.active = 0
}

func (m *Machine) step() Command {
	if m.index >= len(m.items) {
		m.done = true
		m.active = 0
		return Command{Kind: KindDone}
	}
	it := m.items[m.index]
	if it.ID <= 0 {
		m.stats.Skipped++
		return Command{Kind: KindAdvance, Delay: m.opts.SkipDelay}
	}
	if it.ImagesLoaded {
		m.stats.AlreadyLoaded++
		return Command{Kind: KindAdvance, Delay: m.opts.SkipDelay}
	}
	m.active = it.ID
	m.stats.Fetches++
	return Command{Kind: KindFetch, ItemID: it.ID}
}

// Items snapshot of the item list.
func (m *Machine) Items() []Item {
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out
}

// Index position of the current item.
func (m *Machine) Index() int { return m.index }

// ActiveItemID id being fetched, 0 when none.
func (m *Machine) ActiveItemID() int64 { return m.active }

// Done reports whether the last item has been passed.
func (m *Machine) Done() bool { return m.done }

// RetryCount recorded failed attempts for itemID.
func (m *Machine) RetryCount(itemID int64) int { return m.retries[itemID] }

// Stats counters of the current pass.
func (m *Machine) Stats() Stats { return m.stats }
