package sqldb

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

type downPinger struct{ calls int }

func (p *downPinger) PingContext(context.Context) error {
	p.calls++
	return errors.New("connection refused")
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWaitReady_EventuallyUp(t *testing.T) {
	conn, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer conn.Close()

	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing().WillReturnError(errors.New("starting up"))
	mock.ExpectPing()

	if err := WaitReady(context.Background(), conn, 5*time.Millisecond, 5*time.Second, quietLogger()); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestWaitReady_Timeout(t *testing.T) {
	p := &downPinger{}

	err := WaitReady(context.Background(), p, 5*time.Millisecond, 50*time.Millisecond, quietLogger())
	if err == nil {
		t.Fatal("WaitReady() should time out")
	}
	if p.calls < 2 {
		t.Errorf("pinged %d times, want several attempts", p.calls)
	}
}

func TestWaitReady_SQLite(t *testing.T) {
	db := newTestDB(t)

	if err := WaitReady(context.Background(), db, time.Millisecond, time.Second, quietLogger()); err != nil {
		t.Fatalf("WaitReady() error = %v", err)
	}
}
