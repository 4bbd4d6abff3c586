package scp

import "testing"

func TestMeterReportsCumulativeBytes(t *testing.T) {
	var reported []int64
	var totals []int64
	m := NewMeter("data.bin", 0, func(name string, transferred, total int64, rate float64) {
		if name != "data.bin" {
			t.Errorf("name = %q, want %q", name, "data.bin")
		}
		reported = append(reported, transferred)
		totals = append(totals, total)
	})

	fn := m.Func()
	fn(10, 100)
	fn(60, 100)
	fn(100, 100)

	want := []int64{10, 60, 100}
	if len(reported) != len(want) {
		t.Fatalf("callback fired %d times, want %d", len(reported), len(want))
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("reported[%d] = %d, want %d", i, reported[i], want[i])
		}
		if totals[i] != 100 {
			t.Errorf("totals[%d] = %d, want 100 from the engine", i, totals[i])
		}
	}

	transferred, total, _, _ := m.Stats()
	if transferred != 100 || total != 100 {
		t.Errorf("Stats() = (%d, %d), want (100, 100)", transferred, total)
	}
}

func TestMeterIgnoresRegression(t *testing.T) {
	var reported []int64
	m := NewMeter("x", 50, func(_ string, transferred, _ int64, _ float64) {
		reported = append(reported, transferred)
	})

	m.Update(30)
	m.Update(20) // stale update, dropped
	m.Update(50)

	want := []int64{30, 50}
	if len(reported) != len(want) {
		t.Fatalf("reported = %v, want %v", reported, want)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("reported[%d] = %d, want %d", i, reported[i], want[i])
		}
	}
}
