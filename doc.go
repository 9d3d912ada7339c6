/*
Package topolab is a controller for emulated network topologies.

It drives remote compute agents (VPCS, Dynamips, IOU, QEMU, Docker and the
builtin switches) over their HTTP API, keeps the project graph of nodes and
links in step with what the agents acknowledged, and moves whole projects
between machines as portable zip archives.

# Concept

A Controller owns the compute registry and the projects. Each project is a
topology.Project: nodes live on exactly one compute, and links are either
bridged by a single compute or tunnelled across two computes with one NIO per
side. Every acknowledged change is written back to the project descriptor
(<name>.gns3) and published to the configured notification sinks.

# Usage

	ctl := topolab.New(
		topolab.WithProjectsPath("/var/lib/topolab/projects"),
		topolab.WithImages(ports.ImageDirs{"QEMU": "/var/lib/topolab/images/QEMU"}),
	)

	ctx := context.Background()
	agent, err := ctl.AddCompute(ctx, "vm-1", compute.Connection{Host: "10.0.0.2", Port: 3080})
	if err != nil {
		log.Fatal(err)
	}

	p, err := ctl.CreateProject(ctx, "lab")
	if err != nil {
		log.Fatal(err)
	}
	pc1, _ := p.AddNode(ctx, agent, "PC1", "", domain.NodeTypeVPCS, nil)
	pc2, _ := p.AddNode(ctx, agent, "PC2", "", domain.NodeTypeVPCS, nil)
	if _, err := p.AddLink(ctx, topology.Endpoint{Node: pc1}, topology.Endpoint{Node: pc2}); err != nil {
		log.Fatal(err)
	}

	stream, err := ctl.ExportProject(ctx, p.ID(), false)
	if err != nil {
		log.Fatal(err)
	}
	defer stream.Close()
	_, err = stream.WriteTo(out)
*/
package topolab
