// Package dataset summarises labelled intrusion-detection records in the
// NSL-KDD CSV layout.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// TrafficType is the coarse label of a record.
type TrafficType int

const (
	Normal TrafficType = iota
	Attack
)

func (t TrafficType) String() string {
	if t == Normal {
		return "Normal"
	}
	return "Attack"
}

// Protocol names in report order.
const (
	ProtoICMP  = "ICMP"
	ProtoTCP   = "TCP"
	ProtoUDP   = "UDP"
	ProtoOther = "Other"
)

// Protocols lists every protocol bucket in report order.
var Protocols = []string{ProtoICMP, ProtoTCP, ProtoUDP, ProtoOther}

const minColumns = 3

// ErrEmpty is returned by Load when the input holds no records.
var ErrEmpty = errors.New("dataset: no records")

// Record is one CSV row with its derived columns.
type Record struct {
	Fields   []string
	Label    string
	Protocol string
	Traffic  TrafficType
}

// Dataset is an ordered set of records.
type Dataset struct {
	Records []Record
	Columns int
}

// Load reads a header-less CSV. The second-to-last column is the label and
// the second column the protocol.
func Load(r io.Reader) (*Dataset, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	ds := &Dataset{}
	for line := 1; ; line++ {
		fields, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset: %w", err)
		}
		if len(fields) < minColumns {
			return nil, fmt.Errorf("dataset: line %d: need at least %d columns, got %d", line, minColumns, len(fields))
		}
		ds.Records = append(ds.Records, newRecord(fields))
		if len(fields) > ds.Columns {
			ds.Columns = len(fields)
		}
	}

	if len(ds.Records) == 0 {
		return nil, ErrEmpty
	}
	return ds, nil
}

func newRecord(fields []string) Record {
	label := strings.TrimSpace(fields[len(fields)-2])
	traffic := Attack
	if label == "normal" {
		traffic = Normal
	}
	return Record{
		Fields:   fields,
		Label:    label,
		Protocol: protocolName(fields[1]),
		Traffic:  traffic,
	}
}

func protocolName(v string) string {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "icmp":
		return ProtoICMP
	case "1", "tcp":
		return ProtoTCP
	case "2", "udp":
		return ProtoUDP
	default:
		return ProtoOther
	}
}

// Filter selects records by traffic type.
type Filter int

const (
	All Filter = iota
	OnlyNormal
	OnlyAttack
)

// ParseFilter accepts all, normal or attack.
func ParseFilter(s string) (Filter, error) {
	switch strings.ToLower(s) {
	case "", "all":
		return All, nil
	case "normal":
		return OnlyNormal, nil
	case "attack":
		return OnlyAttack, nil
	}
	return All, fmt.Errorf("dataset: unknown filter %q", s)
}

func (f Filter) String() string {
	switch f {
	case OnlyNormal:
		return "normal"
	case OnlyAttack:
		return "attack"
	default:
		return "all"
	}
}

// Filter returns a dataset holding only the matching records.
func (d *Dataset) Filter(f Filter) *Dataset {
	if f == All {
		return &Dataset{Records: d.Records, Columns: d.Columns}
	}
	want := Normal
	if f == OnlyAttack {
		want = Attack
	}

	out := &Dataset{Columns: d.Columns}
	for _, r := range d.Records {
		if r.Traffic == want {
			out.Records = append(out.Records, r)
		}
	}
	return out
}

// ProtocolCounts splits one protocol's records by traffic type.
type ProtocolCounts struct {
	Normal int `json:"normal"`
	Attack int `json:"attack"`
}

// Summary holds the headline totals of a dataset.
type Summary struct {
	Total      int                       `json:"total"`
	Normal     int                       `json:"normal"`
	Attack     int                       `json:"attack"`
	ByProtocol map[string]ProtocolCounts `json:"by_protocol"`
	Labels     map[string]int            `json:"labels"`
}

// AttackPercent returns the share of attack records, 0 for an empty summary.
func (s Summary) AttackPercent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Attack) * 100 / float64(s.Total)
}

// Summary counts records by traffic type, protocol and label.
func (d *Dataset) Summary() Summary {
	s := Summary{
		Total:      len(d.Records),
		ByProtocol: make(map[string]ProtocolCounts, len(Protocols)),
		Labels:     make(map[string]int),
	}
	for _, r := range d.Records {
		pc := s.ByProtocol[r.Protocol]
		if r.Traffic == Normal {
			s.Normal++
			pc.Normal++
		} else {
			s.Attack++
			pc.Attack++
		}
		s.ByProtocol[r.Protocol] = pc
		s.Labels[r.Label]++
	}
	return s
}

// TrendPoint is the attack ratio over one contiguous run of records.
type TrendPoint struct {
	Start   int     `json:"start"`
	End     int     `json:"end"` // exclusive
	Attacks int     `json:"attacks"`
	Ratio   float64 `json:"ratio"`
}

// AttackTrend splits the records into at most buckets contiguous runs of
// near-equal size and reports the attack ratio of each.
func (d *Dataset) AttackTrend(buckets int) []TrendPoint {
	n := len(d.Records)
	if n == 0 || buckets <= 0 {
		return nil
	}
	if buckets > n {
		buckets = n
	}

	points := make([]TrendPoint, 0, buckets)
	for i := 0; i < buckets; i++ {
		start := i * n / buckets
		end := (i + 1) * n / buckets
		p := TrendPoint{Start: start, End: end}
		for _, r := range d.Records[start:end] {
			if r.Traffic == Attack {
				p.Attacks++
			}
		}
		p.Ratio = float64(p.Attacks) / float64(end-start)
		points = append(points, p)
	}
	return points
}
