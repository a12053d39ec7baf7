package lora

import (
	"errors"
	"testing"
)

func TestOpenSerial_RequiresPort(t *testing.T) {
	_, err := OpenSerial(TransportOptions{})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("OpenSerial() error = %v, want ErrConnectionFailed", err)
	}
}

func TestSerialTransport_DrainCompleteLines(t *testing.T) {
	tr := &SerialTransport{}

	// First fragment carries an incomplete line.
	tr.partial.WriteString("DEVICE:ID:001,TYPE:LIGHT")
	if lines := tr.drainCompleteLines(); lines != nil {
		t.Fatalf("incomplete fragment yielded lines: %v", lines)
	}

	// The terminator arrives with the start of the next line.
	tr.partial.WriteString("_SWITCH\r\n001:OK")
	lines := tr.drainCompleteLines()
	if len(lines) != 1 || lines[0] != "DEVICE:ID:001,TYPE:LIGHT_SWITCH" {
		t.Fatalf("lines = %v, want the reassembled discovery line", lines)
	}

	// The tail stays buffered until its own terminator shows up.
	tr.partial.WriteString(":ACK\n")
	lines = tr.drainCompleteLines()
	if len(lines) != 1 || lines[0] != "001:OK:ACK" {
		t.Fatalf("lines = %v, want [001:OK:ACK]", lines)
	}
}

func TestSerialTransport_DrainSkipsBlankLines(t *testing.T) {
	tr := &SerialTransport{}
	tr.partial.WriteString("\r\n\nDEVICE:ID:001\n\n")

	lines := tr.drainCompleteLines()
	if len(lines) != 1 || lines[0] != "DEVICE:ID:001" {
		t.Fatalf("lines = %v, want [DEVICE:ID:001]", lines)
	}
}

func TestSerialTransport_DrainMultipleLinesInOneRead(t *testing.T) {
	tr := &SerialTransport{}
	tr.partial.WriteString("DEVICE:ID:001\nDEVICE:ID:002\nDEVICE:ID:003\n")

	lines := tr.drainCompleteLines()
	if len(lines) != 3 {
		t.Fatalf("lines = %v, want 3 lines", lines)
	}
	if lines[2] != "DEVICE:ID:003" {
		t.Errorf("lines[2] = %q", lines[2])
	}
}
