package solver

import (
	"fmt"
	"strconv"

	"github.com/daniel-perry/shapeworks"
)

const (
	// TblIterations is the name of the sql database table that contains the
	// total energy and the combinator statistics of every iteration.
	TblIterations = "iterations"
	// TblParticles is the name of the sql database table that contains the
	// position and energy of every particle after every iteration.
	TblParticles = "particles"
	// TblDomains is the name of the sql database table that contains the
	// energy of every domain for every iteration.
	TblDomains = "domains"
)

var termNames = [shapeworks.NumTerms]string{"primary", "secondary", "correction"}

func (it *Iterator) initdb() error {
	if it.Db == nil {
		return nil
	}

	s := "CREATE TABLE IF NOT EXISTS " + TblIterations + " (iter INTEGER, energy REAL, evals INTEGER"
	s += statsql("define")
	s += ");"
	if _, err := it.Db.Exec(s); err != nil {
		return fmt.Errorf("solver: creating %v: %w", TblIterations, err)
	}

	s = "CREATE TABLE IF NOT EXISTS " + TblParticles + " (domain INTEGER, particle INTEGER, iter INTEGER, energy REAL, x REAL, y REAL, z REAL);"
	if _, err := it.Db.Exec(s); err != nil {
		return fmt.Errorf("solver: creating %v: %w", TblParticles, err)
	}

	s = "CREATE TABLE IF NOT EXISTS " + TblDomains + " (domain INTEGER, iter INTEGER, energy REAL);"
	if _, err := it.Db.Exec(s); err != nil {
		return fmt.Errorf("solver: creating %v: %w", TblDomains, err)
	}
	return nil
}

// statsql renders the per-term statistic columns.  op "define" yields column
// definitions, "x" the column names and "?" the placeholders.
func statsql(op string) string {
	s := ""
	for _, kind := range []string{"grad", "energy"} {
		for _, name := range termNames {
			switch op {
			case "define":
				s += ", " + kind + "_" + name + " REAL"
			case "x":
				s += ", " + kind + "_" + name
			case "?":
				s += ",?"
			default:
				panic("solver: invalid statsql op " + strconv.Quote(op))
			}
		}
	}
	return s
}

// updateDb records the iteration that just finished.  Particle rows carry the
// positions after the move and the energy evaluated before it.
func (it *Iterator) updateDb(energy float64, st shapeworks.Stats, perDomain []float64) (err error) {
	if it.Db == nil {
		return nil
	}

	tx, err := it.Db.Begin()
	if err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	s0 := "INSERT INTO " + TblIterations + " (iter,energy,evals" + statsql("x") + ") VALUES (?,?,?" + statsql("?") + ");"
	args := []interface{}{it.count, energy, st.Evaluations}
	for _, v := range st.GradMag {
		args = append(args, v)
	}
	for _, v := range st.Energy {
		args = append(args, v)
	}
	if _, err := tx.Exec(s0, args...); err != nil {
		return fmt.Errorf("solver: inserting into %v: %w", TblIterations, err)
	}

	s1 := "INSERT INTO " + TblParticles + " (domain,particle,iter,energy,x,y,z) VALUES (?,?,?,?,?,?,?);"
	s2 := "INSERT INTO " + TblDomains + " (domain,iter,energy) VALUES (?,?,?);"
	for d, e := range perDomain {
		for i := 0; i < it.Sys.NumParticles(d); i++ {
			p := it.Sys.Position(i, d)
			if _, err := tx.Exec(s1, d, i, it.count, it.prev[d][i], p.X, p.Y, p.Z); err != nil {
				return fmt.Errorf("solver: inserting into %v: %w", TblParticles, err)
			}
		}
		if _, err := tx.Exec(s2, d, it.count, e); err != nil {
			return fmt.Errorf("solver: inserting into %v: %w", TblDomains, err)
		}
	}
	return nil
}
