package diag

import "testing"

func TestDedupReporter(t *testing.T) {
	bag := NewBag(0)
	r := NewDedupReporter(BagReporter{Bag: bag})
	subject := Subject{Module: "feature"}
	r.Report(RefMissingDependency, SevInfo, subject, "dependency core is not loaded", nil)
	r.Report(RefMissingDependency, SevInfo, subject, "dependency core is not loaded", nil)
	r.Report(RefMissingDependency, SevInfo, Subject{Module: "app"}, "dependency core is not loaded", nil)
	if bag.Len() != 2 || r.Suppressed() != 1 {
		t.Fatalf("expected 2 diagnostics and 1 suppressed, got %d/%d", bag.Len(), r.Suppressed())
	}

	var nilReporter *DedupReporter
	nilReporter.Report(RefMissingDependency, SevInfo, subject, "ignored", nil)
}
