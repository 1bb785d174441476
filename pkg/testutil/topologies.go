package testutil

import (
	"fmt"

	"github.com/vanderheijden86/burrow/pkg/model"
)

// AviationFixture builds the three-entity reference topology used across
// the engine tests:
//
//	flights #1 --aircraft_id--> aircraft #3 --manufacturer_id--> manufacturers #7
//
// Manufacturer #7 additionally carries an aircraft back-reference whose
// rows include #3, which makes the second occurrence of aircraft #3 under
// flight #1 a cycle.
func AviationFixture() *FixtureStore {
	f := NewFixtureStore()

	f.AddSchema(&model.Schema{
		Entity: "flights",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "number", Type: "TEXT", Label: true},
			{Name: "aircraft_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "aircraft"}},
			{Name: "status", Type: "TEXT"},
			{Name: "created_at", Type: "TEXT", System: true},
			{Name: "internal_notes", Type: "TEXT", Hidden: true},
		},
		BackRefs: []model.BackReferenceDef{
			{SourceEntity: "crew_assignments", ViaColumn: "flight_id"},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "aircraft",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "tail_number", Type: "TEXT", Label: true},
			{Name: "model", Type: "TEXT"},
			{Name: "manufacturer_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "manufacturers"}},
		},
		BackRefs: []model.BackReferenceDef{
			{SourceEntity: "flights", ViaColumn: "aircraft_id"},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "manufacturers",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "country", Type: "TEXT"},
		},
		BackRefs: []model.BackReferenceDef{
			{SourceEntity: "aircraft", ViaColumn: "manufacturer_id"},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "crew_assignments",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "flight_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "flights"}},
			{Name: "role", Type: "TEXT", Label: true},
		},
	})

	f.Add("flights", model.Record{
		"id": int64(1), "number": "UA512", "aircraft_id": int64(3),
		"aircraft_id_label": "N747UA",
		"status":            "boarding", "created_at": "2024-03-01", "internal_notes": "vip",
	})
	f.Add("flights", model.Record{
		"id": int64(2), "number": "UA900", "aircraft_id": int64(3),
		"status": "departed", "created_at": "2024-03-02", "internal_notes": "",
	})
	f.Add("aircraft", model.Record{
		"id": int64(3), "tail_number": "N747UA", "model": "747-8",
		"manufacturer_id": int64(7), "manufacturer_id_label": "Boeing",
	})
	f.Add("aircraft", model.Record{
		"id": int64(4), "tail_number": "N320NW", "model": "A320",
		"manufacturer_id": int64(9),
	})
	f.Add("manufacturers", model.Record{"id": int64(7), "name": "Boeing", "country": "US"})
	f.Add("manufacturers", model.Record{"id": int64(9), "name": "Airbus", "country": "FR"})
	f.Add("crew_assignments", model.Record{"id": int64(21), "flight_id": int64(1), "role": "captain"})
	f.Add("crew_assignments", model.Record{"id": int64(22), "flight_id": int64(1), "role": "first officer"})

	return f
}

// ChainFixture builds n entities linked in a straight line,
// links #1 -> #2 -> ... -> #n via next_id, for depth and cascade tests.
func ChainFixture(n int) *FixtureStore {
	f := NewFixtureStore()
	f.AddSchema(&model.Schema{
		Entity: "links",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "next_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "links"}},
		},
	})
	for i := 1; i <= n; i++ {
		rec := model.Record{"id": int64(i), "name": fmt.Sprintf("link %d", i)}
		if i < n {
			rec["next_id"] = int64(i + 1)
		}
		f.Add("links", rec)
	}
	return f
}

// SelfRefFixture builds employees whose manager_id forms the loop
// 1 -> 2 -> 3 -> 1.
func SelfRefFixture() *FixtureStore {
	f := NewFixtureStore()
	f.AddSchema(&model.Schema{
		Entity: "employees",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "manager_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "employees"}},
		},
		BackRefs: []model.BackReferenceDef{
			{SourceEntity: "employees", ViaColumn: "manager_id"},
		},
	})
	f.Add("employees", model.Record{"id": int64(1), "name": "Ada", "manager_id": int64(2)})
	f.Add("employees", model.Record{"id": int64(2), "name": "Grace", "manager_id": int64(3)})
	f.Add("employees", model.Record{"id": int64(3), "name": "Edsger", "manager_id": int64(1)})
	return f
}

// StarFixture builds one hub entity whose record carries n outbound FK
// columns to distinct spoke entities, for sibling-fetch and ordering tests.
func StarFixture(n int) *FixtureStore {
	f := NewFixtureStore()

	cols := []model.Column{
		{Name: "id", Type: "INTEGER", System: true},
		{Name: "name", Type: "TEXT", Label: true},
	}
	hub := model.Record{"id": int64(1), "name": "hub"}
	for i := 1; i <= n; i++ {
		spoke := fmt.Sprintf("spoke%d", i)
		cols = append(cols, model.Column{
			Name:       spoke + "_id",
			Type:       "INTEGER",
			ForeignKey: &model.ForeignKey{TargetEntity: spoke},
		})
		hub[spoke+"_id"] = int64(i)

		f.AddSchema(&model.Schema{
			Entity: spoke,
			Columns: []model.Column{
				{Name: "id", Type: "INTEGER", System: true},
				{Name: "label", Type: "TEXT", Label: true},
			},
		})
		f.Add(spoke, model.Record{"id": int64(i), "label": fmt.Sprintf("spoke %d", i)})
	}

	f.AddSchema(&model.Schema{Entity: "hubs", Columns: cols})
	f.Add("hubs", hub)
	return f
}

// CycleFixture builds the three-entity reference loop
// regions #1 -> zones #2 -> racks #3 -> regions #1.
func CycleFixture() *FixtureStore {
	f := NewFixtureStore()
	f.AddSchema(&model.Schema{
		Entity: "regions",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "zone_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "zones"}},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "zones",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "rack_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "racks"}},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "racks",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
			{Name: "region_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "regions"}},
		},
	})
	f.Add("regions", model.Record{"id": int64(1), "name": "us-east", "zone_id": int64(2)})
	f.Add("zones", model.Record{"id": int64(2), "name": "zone-a", "rack_id": int64(3)})
	f.Add("racks", model.Record{"id": int64(3), "name": "rack-9", "region_id": int64(1)})
	return f
}

// WideBackRefFixture builds one customer with rows inbound orders, for
// preview truncation tests.
func WideBackRefFixture(rows int) *FixtureStore {
	f := NewFixtureStore()
	f.AddSchema(&model.Schema{
		Entity: "customers",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "name", Type: "TEXT", Label: true},
		},
		BackRefs: []model.BackReferenceDef{
			{SourceEntity: "orders", ViaColumn: "customer_id"},
		},
	})
	f.AddSchema(&model.Schema{
		Entity: "orders",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", System: true},
			{Name: "reference", Type: "TEXT", Label: true},
			{Name: "customer_id", Type: "INTEGER", ForeignKey: &model.ForeignKey{TargetEntity: "customers"}},
		},
	})
	f.Add("customers", model.Record{"id": int64(1), "name": "ACME"})
	for i := 1; i <= rows; i++ {
		f.Add("orders", model.Record{
			"id": int64(100 + i), "reference": fmt.Sprintf("ORD-%04d", i), "customer_id": int64(1),
		})
	}
	return f
}
