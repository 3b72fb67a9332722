// Package manifest turns declarative HCL sweep definitions into config
// collections. A manifest names the axes of a parameter grid once; the
// cartesian product of their values becomes the collection, so a 4x5 scan
// is eight lines of HCL instead of twenty constructor calls:
//
//	sweep "x_scan" {
//	  phase = "phase3"
//	  info  = "radial position scan"
//	  seeds = ["seed_field", "seed_noise"]
//
//	  const {
//	    b_field = 0.9586
//	  }
//
//	  axis "x" {
//	    values = [0.0, 0.001, 0.002, 0.003]
//	  }
//
//	  axis "energy" {
//	    range {
//	      from  = 18500
//	      to    = 18600
//	      count = 5
//	    }
//	  }
//	}
//
// Axes expand in declaration order with the last axis varying fastest, so
// run numbering is stable across loads of the same manifest. `values` lists
// the points explicitly; `range` generates count evenly spaced inclusive
// values. `const` attributes appear unchanged on every entry and `seeds`
// names the fields auto-filled with a fresh seed per entry.
package manifest
