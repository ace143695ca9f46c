package analytics

import (
	"slices"
	"sync"
	"time"
)

// EasterEgg is a hidden reward.
type EasterEgg struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Reward      string `json:"reward"`
}

var (
	KonamiEgg = EasterEgg{
		ID:          "konami-code",
		Description: "Konami code activated!",
		Reward:      "You found the secret designer mode! 🎨",
	}
	TripleClickEgg = EasterEgg{
		ID:          "triple-click",
		Description: "Triple-click master!",
		Reward:      "Fun fact: Melissa can solve a Rubik's cube in under 2 minutes! 🧩",
	}
)

// KonamiCode is matched against the most recent key codes of a session.
var KonamiCode = []string{
	"ArrowUp", "ArrowUp", "ArrowDown", "ArrowDown",
	"ArrowLeft", "ArrowRight", "ArrowLeft", "ArrowRight",
	"KeyB", "KeyA",
}

const (
	TripleClickThreshold = 3
	KeyWindowTTL         = 10 * time.Minute
	maxKeysPerRequest    = 64
)

type keyWindow struct {
	codes    []string
	lastSeen time.Time
}

// EggDetector keeps a sliding window of key codes per session.
type EggDetector struct {
	mu      sync.Mutex
	windows map[string]*keyWindow
	ttl     time.Duration
	now     func() time.Time
	done    chan struct{}
	once    sync.Once
}

// NewEggDetector creates a detector and starts the goroutine that forgets idle
// windows after ttl. A zero ttl uses KeyWindowTTL.
func NewEggDetector(ttl time.Duration) *EggDetector {
	if ttl <= 0 {
		ttl = KeyWindowTTL
	}
	d := &EggDetector{
		windows: make(map[string]*keyWindow),
		ttl:     ttl,
		now:     time.Now,
		done:    make(chan struct{}),
	}
	go d.purgeLoop()
	return d
}

// Close stops the purge goroutine.
func (d *EggDetector) Close() {
	d.once.Do(func() {
		close(d.done)
	})
}

// Keys appends codes to the session window. It reports the Konami egg when the
// last len(KonamiCode) codes match, and the window starts over after a match.
// Only the trailing codes of an oversized batch are considered.
func (d *EggDetector) Keys(sessionID string, codes []string) (EasterEgg, bool) {
	if len(codes) > maxKeysPerRequest {
		codes = codes[len(codes)-maxKeysPerRequest:]
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	w, ok := d.windows[sessionID]
	if !ok {
		w = &keyWindow{}
		d.windows[sessionID] = w
	}
	w.lastSeen = d.now()

	found := false
	for _, code := range codes {
		w.codes = append(w.codes, code)
		if n := len(w.codes); n > len(KonamiCode) {
			w.codes = slices.Clone(w.codes[n-len(KonamiCode):])
		}
		if slices.Equal(w.codes, KonamiCode) {
			w.codes = w.codes[:0]
			found = true
		}
	}

	if found {
		return KonamiEgg, true
	}
	return EasterEgg{}, false
}

// Clicks reports the triple-click egg for a burst of count clicks.
func (d *EggDetector) Clicks(count int) (EasterEgg, bool) {
	if count >= TripleClickThreshold {
		return TripleClickEgg, true
	}
	return EasterEgg{}, false
}

// Purge forgets windows idle since before now-ttl and returns how many it dropped.
func (d *EggDetector) Purge(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for id, w := range d.windows {
		if now.Sub(w.lastSeen) > d.ttl {
			delete(d.windows, id)
			n++
		}
	}
	return n
}

func (d *EggDetector) purgeLoop() {
	ticker := time.NewTicker(d.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
			d.Purge(d.now())
		}
	}
}
