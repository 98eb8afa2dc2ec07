package congestion

import (
	"testing"

	"rft"
)

func TestInitialState(t *testing.T) {
	c := New(nil)
	if c.Cwnd() != MSS {
		t.Fatalf("cwnd = %d, want %d", c.Cwnd(), MSS)
	}
	if c.Ssthresh() != rft.SeqMax {
		t.Fatalf("ssthresh = %d, want %d", c.Ssthresh(), rft.SeqMax)
	}
	if c.Mode() != SlowStart {
		t.Fatalf("mode = %v, want SlowStart", c.Mode())
	}
}

func TestSlowStartGrowsByMSSUntilThreshold(t *testing.T) {
	c := New(nil)
	c.ssthresh = 3 * MSS
	c.SetAdvertisedWindow(rft.SeqMax)
	c.OnNewAck()
	if c.Cwnd() != 2*MSS || c.Mode() != SlowStart {
		t.Fatalf("after 1st ack: cwnd=%d mode=%v", c.Cwnd(), c.Mode())
	}
	c.OnNewAck()
	if c.Cwnd() != 3*MSS || c.Mode() != CongestionAvoidance {
		t.Fatalf("after 2nd ack: cwnd=%d mode=%v, want cwnd=%d mode=CA", c.Cwnd(), c.Mode(), 3*MSS)
	}
}

func TestCongestionAvoidanceGrowsSublinearly(t *testing.T) {
	c := New(nil)
	c.SetAdvertisedWindow(rft.SeqMax)
	c.mode = CongestionAvoidance
	c.ssthresh = MSS
	c.cwnd = 4 * MSS
	before := c.Cwnd()
	c.OnNewAck()
	if c.Cwnd() <= before {
		t.Fatalf("cwnd did not grow: %d -> %d", before, c.Cwnd())
	}
	if c.Cwnd()-before >= MSS {
		t.Fatalf("CA growth should be sublinear, got +%d (MSS=%d)", c.Cwnd()-before, MSS)
	}
}

func TestTripleDuplicateEntersFastRecovery(t *testing.T) {
	c := New(nil)
	c.SetAdvertisedWindow(rft.SeqMax)
	c.cwnd = 10 * MSS
	if r := c.OnDuplicateAck(); r {
		t.Fatal("1st duplicate should not request retransmit")
	}
	if r := c.OnDuplicateAck(); r {
		t.Fatal("2nd duplicate should not request retransmit")
	}
	r := c.OnDuplicateAck()
	if !r {
		t.Fatal("3rd duplicate must request retransmit")
	}
	if c.Mode() != FastRecovery {
		t.Fatalf("mode = %v, want FastRecovery", c.Mode())
	}
	wantCwnd := c.Ssthresh() + 3*MSS
	if c.Cwnd() != wantCwnd {
		t.Fatalf("cwnd = %d, want ssthresh+3*MSS = %d", c.Cwnd(), wantCwnd)
	}

	r = c.OnDuplicateAck()
	if !r {
		t.Fatal("further duplicate in FR must request retransmit")
	}
	if c.Cwnd() != wantCwnd+MSS {
		t.Fatalf("cwnd after 4th dup = %d, want %d", c.Cwnd(), wantCwnd+MSS)
	}

	ssthresh := c.Ssthresh()
	c.OnNewAck()
	if c.Mode() != CongestionAvoidance {
		t.Fatalf("mode after new ack = %v, want CongestionAvoidance", c.Mode())
	}
	if c.Cwnd() != ssthresh {
		t.Fatalf("cwnd after FR exit = %d, want ssthresh = %d", c.Cwnd(), ssthresh)
	}
}

func TestTimeoutResetsToSlowStart(t *testing.T) {
	c := New(nil)
	c.SetAdvertisedWindow(rft.SeqMax)
	c.mode = CongestionAvoidance
	c.cwnd = 20 * MSS
	c.OnTimeout()
	if c.Mode() != SlowStart {
		t.Fatalf("mode = %v, want SlowStart", c.Mode())
	}
	if c.Cwnd() != MSS {
		t.Fatalf("cwnd = %d, want MSS = %d", c.Cwnd(), MSS)
	}
	if c.Ssthresh() != 10*MSS {
		t.Fatalf("ssthresh = %d, want 10*MSS", c.Ssthresh())
	}
}

func TestClampToAdvertisedWindowAndSeqHalf(t *testing.T) {
	c := New(nil)
	c.SetAdvertisedWindow(2 * MSS)
	c.cwnd = 20 * MSS
	c.clamp()
	if c.Cwnd() != 2*MSS {
		t.Fatalf("cwnd = %d, want clamp to advertised window 2*MSS", c.Cwnd())
	}
	c.SetAdvertisedWindow(rft.SeqMax)
	c.cwnd = rft.SeqMax
	c.clamp()
	if c.Cwnd() != rft.SeqHalf {
		t.Fatalf("cwnd = %d, want clamp to SeqHalf = %d", c.Cwnd(), rft.SeqHalf)
	}
}
