// ABOUTME: Entry point for the slaveplay audio receiver
// ABOUTME: Parses CLI flags, wires discovery/transport/session, and drives the stats dashboard
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nyquist-audio/slaveplay/internal/discovery"
	"github.com/nyquist-audio/slaveplay/internal/session"
	"github.com/nyquist-audio/slaveplay/internal/statsui"
	"github.com/nyquist-audio/slaveplay/internal/version"
	"github.com/nyquist-audio/slaveplay/pkg/slaveplay"
)

var (
	sourceAddr  = flag.String("source", "", "Manual source address host:port (skip mDNS)")
	port        = flag.Int("port", 8927, "Port for mDNS advertisement/browse")
	name        = flag.String("name", "", "Receiver friendly name (default: hostname-slaveplay)")
	latency     = flag.Int64("latency", 88200, "Target end-to-end latency, in frames")
	tolerance   = flag.Int64("tolerance", 88, "Sync-error tolerance before stuffing, in frames")
	resyncAt    = flag.Int64("resync-threshold", 4410, "Sync error magnitude that triggers a resync after 3 consecutive frames")
	hqStuffing  = flag.Bool("high-quality-stuffing", false, "Use the resampling-based stuffer instead of the basic one")
	logFile     = flag.String("log-file", "slaveplay.log", "Log file path")
	noTUI       = flag.Bool("no-tui", false, "Disable the stats dashboard, log to stdout instead")
)

func main() {
	flag.Parse()

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if useTUI {
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	receiverName := *name
	if receiverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		receiverName = fmt.Sprintf("%s-slaveplay", hostname)
	}

	if !useTUI {
		log.Printf("starting %s %s (%s): %s", version.Product, version.Version, version.Manufacturer, receiverName)
	}

	var tuiProg *tea.Program
	if useTUI {
		tuiProg = statsui.Run()
		go func() {
			if _, err := tuiProg.Run(); err != nil {
				log.Printf("tui exited: %v", err)
			}
		}()
	}
	updateTUI := func(msg statsui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	source := *sourceAddr
	if source == "" {
		log.Printf("starting source discovery...")
		disc := discovery.NewManager(discovery.Config{ServiceName: receiverName, Port: *port})
		if err := disc.Browse(); err != nil {
			log.Fatalf("discovery browse failed: %v", err)
		}
		select {
		case s := <-disc.Sources():
			source = fmt.Sprintf("%s:%d", s.Host, s.Port)
			log.Printf("discovered source at %s", source)
		case <-time.After(10 * time.Second):
			log.Fatalf("no source found after 10 seconds")
		}
		disc.Stop()
	}

	cfg := session.DefaultConfig()
	cfg.Latency = *latency
	cfg.Tolerance = *tolerance
	cfg.ResyncThreshold = *resyncAt
	if *hqStuffing {
		cfg.Stuffing = session.StuffingHighQuality
	}

	player := slaveplay.NewPlayer(slaveplay.Config{
		ServerAddr: source,
		ClientName: receiverName,
		Session:    cfg,
		OnStateChange: func(st slaveplay.State) {
			updateTUI(statsui.StatusMsg{Connected: st.Connected, SourceName: source})
		},
		OnError: func(err error) {
			log.Printf("player error: %v", err)
		},
	})

	if err := player.Connect(); err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	log.Printf("connected to source: %s", source)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Printf("shutdown signal received")

	if err := player.Close(); err != nil {
		log.Printf("error closing player: %v", err)
	}
	log.Printf("receiver stopped")
}
