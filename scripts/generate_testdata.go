//go:build ignore

// generate_testdata.go creates the demo database used for manual testing
// and screenshots. Usage: go run scripts/generate_testdata.go [path]
//
// The schema exercises every tree shape burrow renders: a foreign-key
// chain (flights → aircraft → manufacturers), back-reference fan-in
// (crew_assignments pointing at flights), a self-reference cycle
// (employees.manager_id), and one dangling reference (a flight whose
// aircraft has been retired from the fleet table).
package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE manufacturers (
	id      INTEGER PRIMARY KEY,
	name    TEXT NOT NULL,
	country TEXT
);

CREATE TABLE aircraft (
	id              INTEGER PRIMARY KEY,
	tail_number     TEXT NOT NULL,
	model           TEXT,
	seats           INTEGER,
	manufacturer_id INTEGER REFERENCES manufacturers(id)
);

CREATE TABLE employees (
	id         INTEGER PRIMARY KEY,
	name       TEXT NOT NULL,
	role       TEXT,
	manager_id INTEGER REFERENCES employees(id)
);

CREATE TABLE flights (
	id          INTEGER PRIMARY KEY,
	number      TEXT NOT NULL,
	status      TEXT,
	departs_at  TEXT,
	notes       TEXT,
	aircraft_id INTEGER REFERENCES aircraft(id)
);

CREATE TABLE crew_assignments (
	id          INTEGER PRIMARY KEY,
	position    TEXT,
	flight_id   INTEGER REFERENCES flights(id),
	employee_id INTEGER REFERENCES employees(id)
);
`

func main() {
	path := "tests/testdata/demo.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	if err := generate(path); err != nil {
		fmt.Fprintf(os.Stderr, "generate %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", path)
	fmt.Println("explore it with: go run ./cmd/burrow --db " + path)
}

func generate(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	_ = os.Remove(path)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.Exec(schema); err != nil {
		return err
	}

	stmts := []string{
		`INSERT INTO manufacturers (id, name, country) VALUES
			(7, 'Boeing', 'USA'),
			(9, 'Airbus', 'France'),
			(11, 'Embraer', 'Brazil')`,

		`INSERT INTO aircraft (id, tail_number, model, seats, manufacturer_id) VALUES
			(3, 'N747UA', '747-400', 416, 7),
			(4, 'F-GSQA', 'A330-200', 293, 9),
			(5, 'N190EM', 'E190', 100, 11),
			(6, 'N772UA', '777-200', 364, 7)`,

		`INSERT INTO employees (id, name, role, manager_id) VALUES
			(1, 'R. Alvarez', 'captain', 4),
			(2, 'T. Okafor', 'first officer', 1),
			(3, 'M. Chen', 'purser', 1),
			(4, 'D. Kowalski', 'chief pilot', 1),
			(5, 'S. Haddad', 'flight attendant', 3)`,

		`INSERT INTO flights (id, number, status, departs_at, notes, aircraft_id) VALUES
			(1, 'UA512', 'boarding', '2025-06-01T08:30:00Z', 'Gate change from B12 to B17.', 3),
			(2, 'UA513', 'scheduled', '2025-06-01T14:10:00Z', NULL, 3),
			(3, 'AF022', 'departed', '2025-06-01T09:05:00Z', NULL, 4),
			(4, 'EM881', 'scheduled', '2025-06-02T07:45:00Z', NULL, 5),
			(5, 'UA004', 'cancelled', '2025-06-01T22:00:00Z', 'Crew timed out.', 6),
			(9, 'UA777', 'scheduled', '2025-06-03T11:00:00Z', 'Aircraft pending reassignment.', 999)`,

		`INSERT INTO crew_assignments (id, position, flight_id, employee_id) VALUES
			(11, 'captain', 1, 1),
			(12, 'first officer', 1, 2),
			(13, 'purser', 1, 3),
			(14, 'captain', 2, 4),
			(15, 'first officer', 2, 2),
			(16, 'captain', 3, 1),
			(17, 'flight attendant', 3, 5),
			(18, 'captain', 4, 4),
			(19, 'purser', 4, 3)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
