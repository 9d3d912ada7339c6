/*
Package dsl provides a Go DSL for programmatically constructing topology descriptors.

It builds the same descriptor a project directory holds, using a fluent builder
instead of hand-written JSON. This is useful for seeding projects, unit testing
and generating lab topologies.

Example usage:

	b := dsl.New("lab")
	b.Compute("vm-1").At("10.0.0.2", 3080)
	b.Add("r1").Name("R1").Type(domain.NodeTypeDynamips).On("vm-1").Set("image", "c7200.image")
	b.Add("pc1").Name("PC1").Type(domain.NodeTypeVPCS).On("vm-1")
	b.Link("r1", 0, 0, "pc1", 0, 0)

	desc, err := b.Build()
	if err != nil {
		log.Fatal(err)
	}
	// desc can be written as <name>.gns3 or passed to topology.Load.
*/
package dsl
