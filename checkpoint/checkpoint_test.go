package checkpoint

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/op/go-logging"

	"github.com/phylem/emtree/em"
)

func init() {
	logging.SetLevel(logging.WARNING, "checkpoint")
}

func TestSaveLoad(tst *testing.T) {
	db, err := Open(filepath.Join(tst.TempDir(), "checkpoint.db"))
	if err != nil {
		tst.Fatal(err)
	}
	defer db.Close()

	s := NewCheckpointIO(db, Key("ali.phy", "ali.part", "3"), 60)
	if data, err := s.Load(); err != nil || data != nil {
		tst.Fatal("Expected no checkpoint, got", data, err)
	}

	state := &em.State{
		Assignment: []int{0, 1, 0},
		Groups:     []em.Group{{Tree: "(a,b,c);", Likelihood: -10}, {Tree: "(a,c,b);", Likelihood: -5}},
		Parameters: []em.Parameters{
			{Alpha: 1, Frequencies: []float64{0.25, 0.25, 0.25, 0.25}, Rates: []float64{1, 1, 1, 1, 1, 1}},
			{Alpha: 2},
			{Alpha: 3},
		},
		HaveParameters: true,
		Likelihood:     -15,
		Step:           4,
	}
	if err := s.Save(&Data{Run: "run", Iteration: 5, State: state}); err != nil {
		tst.Fatal(err)
	}
	if s.Old() {
		tst.Error("Checkpoint is old right after saving")
	}

	// another reader with the same key
	data, err := NewCheckpointIO(db, Key("ali.phy", "ali.part", "3"), 60).Load()
	if err != nil {
		tst.Fatal(err)
	}
	if data == nil || data.Run != "run" || data.Iteration != 5 || data.Final {
		tst.Fatalf("Wrong checkpoint: %+v", data)
	}
	st := data.State
	if len(st.Assignment) != 3 || st.Assignment[1] != 1 || st.Groups[1].Tree != "(a,c,b);" ||
		st.Parameters[2].Alpha != 3 || st.Parameters[0].Rates[5] != 1 || st.Step != 4 || st.Likelihood != -15 {
		tst.Errorf("Wrong state: %+v", st)
	}
	if time.Since(data.Saved) > time.Minute {
		tst.Error("Wrong save time:", data.Saved)
	}

	// different input, different checkpoint
	if data, err := NewCheckpointIO(db, Key("ali.phy", "ali.part", "4"), 60).Load(); err != nil || data != nil {
		tst.Error("Expected no checkpoint, got", data, err)
	}
}

func TestKey(tst *testing.T) {
	if string(Key("a", "b")) != string(Key("a", "b")) {
		tst.Error("Key is not deterministic")
	}
	if string(Key("a", "b")) == string(Key("ab")) {
		tst.Error("Key does not separate the input")
	}
}

func TestNilDB(tst *testing.T) {
	s := NewCheckpointIO(nil, []byte("key"), 0)
	if err := s.Save(&Data{State: &em.State{}}); err != nil {
		tst.Error(err)
	}
	if data, err := s.Load(); data != nil || err != nil {
		tst.Error("Expected nothing from nil database")
	}
	if err := s.Save(&Data{}); err == nil {
		tst.Error("Expected error for empty checkpoint")
	}
	time.Sleep(time.Millisecond)
	if !s.Old() {
		tst.Error("Checkpoint with zero period is not old")
	}
}

func TestSaveClosed(tst *testing.T) {
	db, err := Open(filepath.Join(tst.TempDir(), "checkpoint.db"))
	if err != nil {
		tst.Fatal(err)
	}
	s := NewCheckpointIO(db, Key("ali.phy"), 60)
	db.Close()
	if err := s.Save(&Data{State: &em.State{}}); err == nil {
		tst.Error("Expected error saving to a closed database")
	}
}
