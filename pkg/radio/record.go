package radio

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// Directive identifies one AT command slot of a Record.
type Directive int

// Directives in record order, one per configuration stage.
const (
	DirectiveMode Directive = iota
	DirectiveDHCP
	DirectiveJoinAP
	DirectiveMux
	DirectiveStart
	DirectiveTransferMode
	DirectiveSendTrigger
	NumDirectives
)

var directiveSizes = [NumDirectives]int{20, 20, 64, 16, 64, 16, 16}

var directiveNames = [NumDirectives]string{
	"mode",
	"dhcp",
	"join_ap",
	"mux",
	"start",
	"transfer_mode",
	"send_trigger",
}

var directiveOffsets = func() (offs [NumDirectives + 1]int) {
	for n, size := range directiveSizes {
		offs[n+1] = offs[n] + size
	}
	return
}()

// RecordSize is the wire size of a Record.
const RecordSize = 216

// ErrDirectiveTooLong is returned when a command doesn't fit its slot.
var ErrDirectiveTooLong = errors.New("directive too long")

func (d Directive) String() string {
	if d >= 0 && d < NumDirectives {
		return directiveNames[d]
	}
	return fmt.Sprintf("directive(%d)", int(d))
}

// Size returns the slot size of the directive.
func (d Directive) Size() int {
	return directiveSizes[d]
}

// Record is the fixed layout configuration carried by START_CONFIG: one
// zero padded, line feed terminated AT command per directive.
type Record [RecordSize]byte

// Directive returns the whole slot of d.
func (r *Record) Directive(d Directive) []byte {
	return r[directiveOffsets[d]:directiveOffsets[d+1]]
}

// Command returns the bytes to transmit for d: the slot up to and including
// the first line feed, or up to the first zero byte if there is none.
func (r *Record) Command(d Directive) []byte {
	slot := r.Directive(d)
	if n := bytes.IndexByte(slot, '\n'); n >= 0 {
		return slot[:n+1]
	}
	if n := bytes.IndexByte(slot, 0); n >= 0 {
		return slot[:n]
	}
	return slot
}

// SetDirective stores cmd into the slot of d, zero padding the rest.
func (r *Record) SetDirective(d Directive, cmd string) error {
	slot := r.Directive(d)
	if len(cmd) > len(slot) {
		return errors.Wrapf(ErrDirectiveTooLong, "%s: %d > %d", d, len(cmd), len(slot))
	}
	n := copy(slot, cmd)
	for ; n < len(slot); n++ {
		slot[n] = 0
	}
	return nil
}

// NewRecord builds a Record from commands in directive order.
func NewRecord(cmds ...string) (*Record, error) {
	if len(cmds) > int(NumDirectives) {
		return nil, errors.Errorf("too many directives: %d", len(cmds))
	}
	rec := &Record{}
	for n, cmd := range cmds {
		if err := rec.SetDirective(Directive(n), cmd); err != nil {
			return nil, err
		}
	}
	return rec, nil
}
