package presence

import "session-tracker/internal/models"

// commandHistory is a fixed-capacity ring of command records. Once full,
// each push overwrites the oldest record.
type commandHistory struct {
	buf   []models.CommandRecord
	start int
	size  int
}

func newCommandHistory(capacity int) *commandHistory {
	if capacity < 1 {
		capacity = 1
	}
	return &commandHistory{buf: make([]models.CommandRecord, capacity)}
}

func (h *commandHistory) push(rec models.CommandRecord) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = rec
		h.size++
		return
	}
	h.buf[h.start] = rec
	h.start = (h.start + 1) % len(h.buf)
}

func (h *commandHistory) len() int { return h.size }

// records returns the history oldest first.
func (h *commandHistory) records() []models.CommandRecord {
	out := make([]models.CommandRecord, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}

func (h *commandHistory) last() (models.CommandRecord, bool) {
	if h.size == 0 {
		return models.CommandRecord{}, false
	}
	return h.buf[(h.start+h.size-1)%len(h.buf)], true
}
