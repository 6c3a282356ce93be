package membrane

import (
	"github.com/bytedance/sonic"
)

// Stats is a point-in-time census of a membrane
type Stats struct {
	ID             string   `json:"id"`
	Fields         []string `json:"fields"`
	LiveRecords    int      `json:"live_records"`
	RevokedRecords int      `json:"revoked_records"`
	Pinned         int      `json:"pinned"`
	Revoked        bool     `json:"revoked"`
}

// Stats returns the membrane's current census
func (m *Membrane) Stats() Stats {
	live, revoked, pinned := m.registry.census()

	fields := m.registry.fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f)
	}

	return Stats{
		ID:             m.id.String(),
		Fields:         names,
		LiveRecords:    live,
		RevokedRecords: revoked,
		Pinned:         pinned,
		Revoked:        m.revoked.Load(),
	}
}

// JSON encodes the stats
func (s Stats) JSON() ([]byte, error) {
	return sonic.Marshal(s)
}
