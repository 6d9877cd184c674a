package container_test

import (
	"errors"

	"github.com/km-arc/go-ioc/framework/container"
)

// ── fixtures ──────────────────────────────────────────────────────────────────

type Logger interface{ Log(msg string) }

type ConsoleLogger struct{ lines []string }

func (l *ConsoleLogger) Log(msg string) { l.lines = append(l.lines, msg) }

type FileLogger struct{ path string }

func (l *FileLogger) Log(string) {}

type Gadget interface{ Spin() string }

type Sprocket struct{}

func (Sprocket) Spin() string { return "sprocket" }

type Widget struct {
	Gadget Gadget `inject:""`
}

type Service struct {
	Log   Logger `inject:""`
	Audit Logger `inject:"audit,optional"`
}

type Mailer struct {
	Log Logger `inject:""`
}

type Uploader struct {
	Log Logger `inject:""`
}

type Store interface{ Name() string }

type memStore struct{ name string }

func (s *memStore) Name() string { return s.name }

type Reports struct {
	Store Store
	Log   Logger
	Title string `inject:"title,optional"`
}

func NewReports(s Store, l Logger) *Reports {
	return &Reports{Store: s, Log: l}
}

type Clock struct{ Zone string }

var errBrokenClock = errors.New("clock: broken")

func NewClock(zone string) (*Clock, error) {
	if zone == "broken" {
		return nil, errBrokenClock
	}
	return &Clock{Zone: zone}, nil
}

type LoggerFactory struct {
	Prefix string `inject:"prefix,optional"`
	made   int
}

func (f *LoggerFactory) Create() (Logger, error) {
	f.made++
	return &FileLogger{path: f.Prefix}, nil
}

func init() {
	must(container.RegisterConstructor(NewReports, container.Param{}, container.Param{ID: "", Optional: true}))
	must(container.RegisterConstructor(NewClock, container.Param{ID: "zone"}))
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
