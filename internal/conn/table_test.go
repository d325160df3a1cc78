package conn_test

import (
	"errors"
	"testing"

	"github.com/momentics/hioload-bench/api"
	"github.com/momentics/hioload-bench/internal/conn"
)

type closeRecorder struct {
	closed []int
	err    error
}

func (r *closeRecorder) Close(fd int) error {
	r.closed = append(r.closed, fd)
	return r.err
}

func TestTable_AllocatesLowestFree(t *testing.T) {
	tbl := conn.NewTable(4, &closeRecorder{})
	for i := 0; i < 3; i++ {
		tok, err := tbl.Allocate(100 + i)
		if err != nil || int(tok) != i {
			t.Fatalf("allocate %d: tok=%d err=%v", i, tok, err)
		}
	}
	if err := tbl.Remove(1); err != nil {
		t.Fatal(err)
	}
	tok, _ := tbl.Allocate(200)
	if tok != 1 {
		t.Errorf("expected reuse of token 1, got %d", tok)
	}
	tok, _ = tbl.Allocate(201)
	if tok != 3 {
		t.Errorf("expected token 3, got %d", tok)
	}
}

func TestTable_FullAndUnknown(t *testing.T) {
	tbl := conn.NewTable(1, nil)
	if _, err := tbl.Allocate(5); err != nil {
		t.Fatal(err)
	}
	if _, err := tbl.Allocate(6); !errors.Is(err, api.ErrTableFull) {
		t.Errorf("allocate on full table: %v", err)
	}
	if _, err := tbl.Get(3); !errors.Is(err, api.ErrUnknownToken) || !api.IsInternal(err) {
		t.Errorf("get unknown token: %v", err)
	}
	if err := tbl.Remove(0); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Remove(0); !errors.Is(err, api.ErrUnknownToken) {
		t.Errorf("double remove: %v", err)
	}
}

func TestTable_ReusedTokenIsFresh(t *testing.T) {
	tbl := conn.NewTable(2, nil)
	tok, _ := tbl.Allocate(10)
	c, _ := tbl.Get(tok)
	c.RecvOutstanding = true
	c.Requests = 9
	if err := tbl.Remove(tok); err != nil {
		t.Fatal(err)
	}
	if c.State != conn.StateClosed {
		t.Errorf("removed connection state %v", c.State)
	}

	again, _ := tbl.Allocate(11)
	if again != tok {
		t.Fatalf("token not reused: %d", again)
	}
	fresh, _ := tbl.Get(again)
	if fresh == c || fresh.RecvOutstanding || fresh.Requests != 0 || fresh.FD != 11 {
		t.Errorf("reused token carried state: %+v", fresh)
	}
}

func TestTable_RemoveClosesSocket(t *testing.T) {
	rec := &closeRecorder{err: errors.New("ebadf")}
	tbl := conn.NewTable(2, rec)
	tok, _ := tbl.Allocate(42)
	if err := tbl.Remove(tok); err == nil {
		t.Error("close error swallowed")
	}
	if len(rec.closed) != 1 || rec.closed[0] != 42 {
		t.Errorf("closed fds %v", rec.closed)
	}
	if tbl.Len() != 0 {
		t.Errorf("slot kept after failed close, len=%d", tbl.Len())
	}
}

func TestTable_CloseAll(t *testing.T) {
	rec := &closeRecorder{}
	tbl := conn.NewTable(3, rec)
	for fd := 1; fd <= 3; fd++ {
		_, _ = tbl.Allocate(fd)
	}
	var seen []conn.Token
	tbl.Range(func(c *conn.Connection) { seen = append(seen, c.Token) })
	if len(seen) != 3 {
		t.Fatalf("range saw %v", seen)
	}
	if err := tbl.CloseAll(); err != nil {
		t.Fatal(err)
	}
	if tbl.Len() != 0 || len(rec.closed) != 3 {
		t.Errorf("len=%d closed=%v", tbl.Len(), rec.closed)
	}
}
