// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package lifecycle

import (
	"testing"
	"time"

	"github.com/ManuGH/adsession/internal/domain/session/model"
)

func FuzzDispatchInvariants(f *testing.F) {
	f.Add(0, 4)
	f.Add(-2, 4)
	f.Add(404, 0)

	f.Fuzz(func(t *testing.T, code int, evInt int) {
		now := time.Unix(0, 0)
		rec := NewSessionRecord("s", "t", "u", model.ModeLive, now)
		if _, err := Dispatch(rec, EventForCode(model.ResultCode(code)), now); err != nil {
			t.Fatalf("init dispatch must always be legal: %v", err)
		}
		if rec.Result == model.ResultNotInitialised {
			t.Fatalf("init must resolve the session: %+v", rec)
		}

		before := rec.Result
		ev := allEvents[((evInt%len(allEvents))+len(allEvents))%len(allEvents)]
		_, err := Dispatch(rec, Event{Kind: ev}, now)
		if before.IsTerminal() && (err == nil || rec.Result != before) {
			t.Fatalf("terminal results must absorb: %s + %v -> %s", before, ev, rec.Result)
		}
		if err != nil && rec.Result != before {
			t.Fatalf("rejected transition mutated record: %s -> %s", before, rec.Result)
		}
	})
}
