// main.go - Command-line front end for the VGM player engine.

package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

var cli struct {
	Play PlayCmd `cmd:"" help:"Play a VGM/VGZ command log."`
	Info InfoCmd `cmd:"" help:"Show header information for a VGM/VGZ file."`
}

func main() {
	ctx := kong.Parse(&cli,
		kong.Name("fm90s"),
		kong.Description("Chiptune command-log player for 90s console sound hardware."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(); err != nil {
		log.Fatal(err)
	}
}

type PlayCmd struct {
	File        string  `arg:"" type:"existingfile" help:"Path to the .vgm or .vgz file."`
	Loops       int     `short:"l" default:"2" help:"Play-throughs before fading out."`
	Fade        float64 `short:"f" default:"3" help:"Fade-out length in seconds."`
	NoPrerender bool    `help:"Disable ahead-of-time DAC expansion."`
}

func (c *PlayCmd) Run() error {
	cfg := DefaultPlayerConfig()
	cfg.LoopLimit = c.Loops
	cfg.FadeSeconds = c.Fade
	cfg.EnableDACPrerender = !c.NoPrerender

	bus := NewAudioBus()
	player := NewVGMPlayer(cfg, afero.NewOsFs(), bus)

	output, err := NewAudioOutput(cfg.SampleRate, bus)
	if err != nil {
		return fmt.Errorf("audio init: %w", err)
	}
	defer output.Close()

	if !player.LoadFile(c.File) {
		return fmt.Errorf("could not load %s", c.File)
	}

	done := make(chan struct{})
	player.SetFinishedCallback(func() {
		close(done)
	})

	keys := startKeyReader()
	defer stopKeyReader()

	fmt.Printf("Playing %s  [%s, %s]\n", c.File, player.Chip(), player.DurationText())
	fmt.Println("space: pause/resume   q: quit")

	player.Play()
	output.Start()

	status := time.NewTicker(250 * time.Millisecond)
	defer status.Stop()

	for {
		select {
		case <-done:
			fmt.Println("\nfinished")
			return nil
		case key := <-keys:
			switch key {
			case ' ':
				if player.State() == PLAYER_PAUSED {
					player.Resume()
				} else {
					player.Pause()
				}
			case 'q', 'Q', 3, 27: // q, ctrl-c, esc
				player.Stop()
				fmt.Println("\nstopped")
				return nil
			}
		case <-status.C:
			printStatus(player)
		default:
			player.Update()
			time.Sleep(100 * time.Microsecond)
		}
	}
}

func printStatus(p *VGMPlayer) {
	d := p.Diagnostics()
	marker := ""
	if d.FadeActive {
		marker = " fading"
	} else if d.IsFinalLoop {
		marker = " final"
	}
	fmt.Printf("\r%s %02d:%02d / %s  loop %d%s   ",
		d.State,
		p.PositionMs()/60000, p.PositionMs()/1000%60,
		p.DurationText(),
		d.PlayCount+1, marker)
}

var termState *term.State

// startKeyReader puts the terminal into raw mode and streams key
// presses on a channel. Non-terminal stdin (pipes, tests) degrades to
// a channel that never fires.
func startKeyReader() <-chan byte {
	keys := make(chan byte, 8)
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return keys
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		return keys
	}
	termState = state
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n > 0 {
				keys <- buf[0]
			}
		}
	}()
	return keys
}

func stopKeyReader() {
	if termState != nil {
		term.Restore(int(os.Stdin.Fd()), termState)
		termState = nil
	}
}

type InfoCmd struct {
	File string `arg:"" type:"existingfile" help:"Path to the .vgm or .vgz file."`
}

func (c *InfoCmd) Run() error {
	data, err := openForRead(afero.NewOsFs(), c.File)
	if err != nil {
		return err
	}
	f, err := ParseVGMData(data)
	if err != nil {
		return err
	}

	h := f.Header
	fmt.Printf("File:          %s\n", c.File)
	fmt.Printf("Version:       %d.%02x\n", h.Version>>8, h.Version&0xFF)
	fmt.Printf("Chip:          %s\n", f.Chip)
	fmt.Printf("Duration:      %s (%d samples)\n", sampleText(h.TotalSamples), h.TotalSamples)
	if f.HasLoop() {
		fmt.Printf("Loop:          %s (%d samples) from offset 0x%X\n",
			sampleText(h.LoopSamples), h.LoopSamples, h.LoopOffset)
	} else {
		fmt.Printf("Loop:          none\n")
	}
	fmt.Printf("Data offset:   0x%X\n", h.DataStart)
	printClocks(h.Clocks)
	return nil
}

func sampleText(samples uint64) string {
	secs := float64(samples) / VGM_SAMPLE_RATE
	return fmt.Sprintf("%d:%05.2f", int(secs)/60, secs-float64(int(secs)/60*60))
}

func printClocks(c ChipClocks) {
	named := []struct {
		name  string
		clock uint32
	}{
		{"SN76489", c.SN76489},
		{"YM2612", c.YM2612},
		{"YM3812", c.YM3812},
		{"YMF262", c.YMF262},
		{"GB DMG", c.GBDMG},
		{"NES APU", c.NESAPU},
	}
	for _, n := range named {
		if n.clock != 0 {
			fmt.Printf("%-14s %d Hz\n", n.name+":", n.clock)
		}
	}
}
