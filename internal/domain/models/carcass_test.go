package models

import "testing"

func TestDerivePartsWhole(t *testing.T) {
	specs, total, err := DeriveParts(CarcassWhole, map[PartType]float64{PartWholeCarcass: 310})
	if err != nil {
		t.Fatalf("DeriveParts: %v", err)
	}
	if len(specs) != 1 || specs[0].PartType != PartWholeCarcass || specs[0].Weight != 310 {
		t.Fatalf("unexpected specs %+v", specs)
	}
	if total != 310 {
		t.Fatalf("total = %v, want 310", total)
	}
}

func TestDerivePartsSplitSides(t *testing.T) {
	specs, total, err := DeriveParts(CarcassSplitSides, map[PartType]float64{
		PartLeftSide:  240,
		PartRightSide: 250,
	})
	if err != nil {
		t.Fatalf("DeriveParts: %v", err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 parts, got %d", len(specs))
	}
	if specs[0].PartType != PartLeftSide || specs[1].PartType != PartRightSide {
		t.Fatalf("unexpected part order %+v", specs)
	}
	if total != 490 {
		t.Fatalf("total = %v, want 490", total)
	}
}

func TestDerivePartsSplitSidesMissingSide(t *testing.T) {
	if _, _, err := DeriveParts(CarcassSplitSides, map[PartType]float64{PartLeftSide: 240}); err == nil {
		t.Fatal("expected error for missing right side")
	}
}

func TestDerivePartsDetailedDeterministicOrder(t *testing.T) {
	weights := map[PartType]float64{
		PartFeet:  12,
		PartHead:  25,
		PartTorso: 180,
	}
	first, total, err := DeriveParts(CarcassSplitDetailed, weights)
	if err != nil {
		t.Fatalf("DeriveParts: %v", err)
	}
	if total != 217 {
		t.Fatalf("total = %v, want 217", total)
	}

	// Same inputs must produce the same ordering regardless of map
	// iteration.
	for i := 0; i < 10; i++ {
		again, _, err := DeriveParts(CarcassSplitDetailed, weights)
		if err != nil {
			t.Fatalf("DeriveParts: %v", err)
		}
		for j := range first {
			if again[j].PartType != first[j].PartType {
				t.Fatalf("order changed between runs: %+v vs %+v", first, again)
			}
		}
	}
}

func TestDerivePartsDetailedRejectsSideTypes(t *testing.T) {
	_, _, err := DeriveParts(CarcassSplitDetailed, map[PartType]float64{
		PartHead:     25,
		PartLeftSide: 240,
	})
	if err == nil {
		t.Fatal("expected error for side type in detailed split")
	}
}

func TestDerivePartsRejectsUnexpectedWeights(t *testing.T) {
	_, _, err := DeriveParts(CarcassSplitSides, map[PartType]float64{
		PartLeftSide:  240,
		PartRightSide: 250,
		PartHead:      10,
	})
	if err == nil {
		t.Fatal("expected error for head weight in a sides split")
	}

	_, _, err = DeriveParts(CarcassWhole, map[PartType]float64{
		PartWholeCarcass: 300,
		PartFeet:         12,
	})
	if err == nil {
		t.Fatal("expected error for extra weight in a whole carcass")
	}
}

func TestDerivePartsRejectsBadWeights(t *testing.T) {
	if _, _, err := DeriveParts(CarcassWhole, map[PartType]float64{PartWholeCarcass: -5}); err == nil {
		t.Fatal("expected error for negative weight")
	}
	if _, _, err := DeriveParts(CarcassWhole, map[PartType]float64{"tail": 10}); err == nil {
		t.Fatal("expected error for unknown part type")
	}
	if _, _, err := DeriveParts("quartered", map[PartType]float64{PartWholeCarcass: 100}); err == nil {
		t.Fatal("expected error for unknown carcass type")
	}
}
