package decoder

import (
	"fmt"
	"log/slog"
	"strings"

	"firestige.xyz/grbr/internal/core"
	"firestige.xyz/grbr/internal/metrics"
)

// CheckPolicy controls one integrity check. A disabled check is skipped.
// When Toss is set a failing packet is rejected, otherwise the failure is
// logged and the packet passes.
type CheckPolicy struct {
	Enabled bool
	Toss    bool
}

// Policy configures the integrity gate.
type Policy struct {
	CRC        CheckPolicy
	Validation CheckPolicy
}

// DefaultPolicy checks everything and tosses nothing.
func DefaultPolicy() Policy {
	return Policy{
		CRC:        CheckPolicy{Enabled: true},
		Validation: CheckPolicy{Enabled: true},
	}
}

// Verdict records what the gate found on one packet.
type Verdict struct {
	CRCFailed bool
	Findings  []Finding
}

// Gate applies CRC and field validation to decoded packets.
type Gate struct {
	policy Policy
}

// NewGate creates a gate with the given policy.
func NewGate(p Policy) *Gate {
	return &Gate{policy: p}
}

// Policy returns the gate configuration.
func (g *Gate) Policy() Policy { return g.policy }

// Check inspects pkt. The error is non-nil only for a failure whose policy
// is Toss; soft failures are logged and reported in the verdict.
func (g *Gate) Check(pkt *core.Packet) (Verdict, error) {
	var v Verdict

	if g.policy.CRC.Enabled {
		if err := VerifyCRC(pkt.Raw); err != nil {
			v.CRCFailed = true
			metrics.CRCFailuresTotal.Inc()
			slog.Error("packet failed the crc check",
				"apid", fmt.Sprintf("%#x", pkt.Primary.APID),
				"offset", pkt.Span.Offset,
				"error", err)
			if g.policy.CRC.Toss {
				return v, err
			}
		}
	}

	if g.policy.Validation.Enabled {
		v.Findings = Validate(pkt)
		if len(v.Findings) > 0 {
			metrics.ValidationFailuresTotal.Inc()
			slog.Error("packet failed validation",
				"apid", fmt.Sprintf("%#x", pkt.Primary.APID),
				"offset", pkt.Span.Offset,
				"errors", len(v.Findings),
				"fields", joinFindings(v.Findings))
			if g.policy.Validation.Toss {
				return v, fmt.Errorf("%w: %s", core.ErrValidation, joinFindings(v.Findings))
			}
		}
	}

	return v, nil
}

func joinFindings(fs []Finding) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = f.String()
	}
	return strings.Join(parts, ",")
}
