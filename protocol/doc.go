// Package protocol loads and validates measurement protocols.
//
// A protocol is a YAML document:
//
//	version: "1.0"
//	channels:
//	  analyze: [left, right]
//	analyses:
//	  temporal:
//	    enabled: true
//	    methods:
//	      - name: autocorrelation
//	        params: {max_lag: 100}
//	preprocessing: {...}
//	visualization: {enabled: true}
//	output: {save_raw_data: true}
//
// Loading walks the whole document once and reports every structural
// violation together in a StructuralError. Unknown families and a missing
// enabled flag are warnings; the family is then left out of the Plan.
// Declared params replace registry defaults key by key without merging
// nested values.
package protocol
