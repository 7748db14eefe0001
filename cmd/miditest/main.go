package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"go-epg/debug"
	"go-epg/euclid"
	epgmidi "go-epg/midi"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	args := os.Args[2:]
	if len(args) > 0 && args[len(args)-1] == "-v" {
		args = args[:len(args)-1]
		debug.EnableWriter(os.Stderr, "debug")
		defer debug.Disable()
	}
	switch os.Args[1] {
	case "list":
		listPorts()
	case "monitor":
		monitor(args)
	case "note":
		sendNote(args)
	case "euclid":
		printEuclid(args)
	case "poll":
		pollDevices()
	default:
		usage()
	}
}

func usage() {
	fmt.Println("MIDI Test Scripts")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  list                     - List all MIDI ports")
	fmt.Println("  monitor <in>             - Print CC messages from an input port")
	fmt.Println("  note <out> [ch] [note]   - Send a test note")
	fmt.Println("  euclid <steps> <pulses> [rotation] - Print a euclidean rhythm")
	fmt.Println("  poll                     - Poll for device changes")
	fmt.Println("")
	fmt.Println("Append -v to any command to log to stderr.")
}

func listPorts() {
	fmt.Println("=== MIDI Input Ports ===")
	fmt.Println("(waiting up to 3 seconds...)")

	type result struct {
		ins  []drivers.In
		outs []drivers.Out
	}
	ch := make(chan result, 1)
	go func() {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()
		ch <- result{ins: ins, outs: outs}
	}()

	select {
	case r := <-ch:
		for i, p := range r.ins {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
		fmt.Println("\n=== MIDI Output Ports ===")
		for i, p := range r.outs {
			fmt.Printf("  %d: %s\n", i, p.String())
		}
	case <-time.After(3 * time.Second):
		fmt.Println("\nTIMEOUT! CoreMIDI is hung.")
		fmt.Println("Fix: sudo killall coreaudiod midiserver")
	}
}

// monitor prints decoded CC messages, the way the remote router sees them
func monitor(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	in, err := midi.FindInPort(args[0])
	if err != nil {
		fmt.Printf("input %q not found: %v\n", args[0], err)
		return
	}

	raw := make(chan epgmidi.Raw, 64)
	l, err := epgmidi.NewListener(in.String(), in, raw)
	if err != nil {
		fmt.Println(err)
		return
	}
	defer l.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Listening on %s. Ctrl+C to exit.\n", in.String())
	for {
		select {
		case <-ctx.Done():
			if n := l.Dropped(); n > 0 {
				fmt.Printf("\n%d messages dropped\n", n)
			}
			return
		case r := <-raw:
			if cc, ok := epgmidi.ParseCC(r.Data); ok {
				fmt.Printf("[%s] ch=%-2d cc=%-3d value=%-3d (%.2f)\n",
					time.Now().Format("15:04:05.000"), cc.Channel, cc.Controller, cc.Value, cc.Normalized())
			} else {
				fmt.Printf("[%s] %s\n", time.Now().Format("15:04:05.000"), midi.Message(r.Data).String())
			}
		}
	}
}

func sendNote(args []string) {
	if len(args) < 1 {
		usage()
		return
	}
	channel, note := 1, 60
	if len(args) > 1 {
		channel, _ = strconv.Atoi(args[1])
	}
	if len(args) > 2 {
		note, _ = strconv.Atoi(args[2])
	}
	if channel < 1 || channel > 16 || note < 0 || note > 127 {
		fmt.Println("channel must be 1-16 and note 0-127")
		return
	}

	out := epgmidi.NewOutput(args[0])
	defer out.Close()

	ch, n := uint8(channel-1), uint8(note)
	if err := out.Send("", []epgmidi.Event{{Type: epgmidi.NoteOn, Channel: ch, Note: n, Velocity: 100}}); err != nil {
		fmt.Println(err)
		return
	}
	time.Sleep(250 * time.Millisecond)
	if err := out.Send("", []epgmidi.Event{{Type: epgmidi.NoteOff, Channel: ch, Note: n}}); err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("Sent note %d on channel %d to %s\n", note, channel, args[0])
}

func printEuclid(args []string) {
	if len(args) < 2 {
		usage()
		return
	}
	steps, err1 := strconv.Atoi(args[0])
	pulses, err2 := strconv.Atoi(args[1])
	rotation := 0
	if len(args) > 2 {
		rotation, _ = strconv.Atoi(args[2])
	}
	if err1 != nil || err2 != nil {
		usage()
		return
	}

	var row strings.Builder
	for _, on := range euclid.Pattern(steps, pulses, rotation) {
		if on {
			row.WriteString("x ")
		} else {
			row.WriteString(". ")
		}
	}
	fmt.Printf("E(%d,%d) r%d: %s\n", steps, pulses, rotation, strings.TrimSpace(row.String()))
}

func pollDevices() {
	fmt.Println("Polling for device changes every 2 seconds...")
	fmt.Println("Connect/disconnect a controller to test. Ctrl+C to exit.")

	lastIn := ""
	lastOut := ""

	for {
		ins := midi.GetInPorts()
		outs := midi.GetOutPorts()

		var inNames, outNames []string
		for _, p := range ins {
			inNames = append(inNames, p.String())
		}
		for _, p := range outs {
			outNames = append(outNames, p.String())
		}

		currentIn := strings.Join(inNames, ",")
		currentOut := strings.Join(outNames, ",")

		if currentIn != lastIn || currentOut != lastOut {
			fmt.Printf("\n[%s] Device change detected!\n", time.Now().Format("15:04:05"))
			fmt.Printf("  Inputs: %v\n", inNames)
			fmt.Printf("  Outputs: %v\n", outNames)

			lastIn = currentIn
			lastOut = currentOut
		}

		time.Sleep(2 * time.Second)
	}
}
