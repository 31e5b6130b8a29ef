package usecases_test

import (
	"reflect"
	"testing"

	"github.com/pyrovision/pyrovision/internal/core/domain"
	"github.com/pyrovision/pyrovision/internal/core/usecases"
)

func TestFilterInRegion_MixedBatch(t *testing.T) {
	noFire := fire("c", 19.1, 72.6)
	noFire.Label = domain.LabelNoWildfire

	records := []domain.DetectionRecord{
		fire("a", 19.0, 72.5),
		fire("b", 25.0, 72.5),
		noFire,
		fire("d", 18.5, 73.5),
	}

	got := usecases.FilterInRegion(records, testRegion)
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d: %+v", len(got), got)
	}
	if got[0].SourceID != "a" || got[1].SourceID != "d" {
		t.Errorf("order not preserved: %s, %s", got[0].SourceID, got[1].SourceID)
	}
	for _, r := range got {
		if r.Label != domain.LabelWildfire {
			t.Errorf("NoWildfire record %s passed the filter", r.SourceID)
		}
	}
}

func TestFilterInRegion_Idempotent(t *testing.T) {
	records := []domain.DetectionRecord{
		fire("a", 19.0, 72.5),
		fire("b", 17.0, 72.5),
		fire("c", 20.0, 72.0),
	}
	once := usecases.FilterInRegion(records, testRegion)
	twice := usecases.FilterInRegion(once, testRegion)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("filter is not idempotent: %+v vs %+v", once, twice)
	}
}

func TestFilterInRegion_Empty(t *testing.T) {
	got := usecases.FilterInRegion(nil, testRegion)
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}
