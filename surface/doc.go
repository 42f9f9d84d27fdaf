// Package surface defines the structured declaration tree the bridge
// compiler consumes. Producing the tree from source text is the job of an
// external front end; this package only fixes its shape and offers a YAML
// decoding that records line and column positions for diagnostics.
//
// A minimal declaration:
//
//	module: demo
//	items:
//	  - kind: struct
//	    name: Point
//	    fields:
//	      - {name: x, type: f64}
//	      - {name: y, type: f64}
//	  - kind: extern
//	    side: native
//	    includes: ["demo/widget.h"]
//	    types:
//	      - name: Widget
//	    functions:
//	      - name: new_widget
//	        returns: {name: Unique, args: [Widget]}
//	      - name: measure
//	        params:
//	          - {name: w, type: {ref: Widget}}
//	        returns: f64
//	        fallible: true
//
// Type expressions are a scalar name or a mapping with name/args (generic
// instantiation) or ref/mut (borrowed reference).
package surface
