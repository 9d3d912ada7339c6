package archive_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/topolab/internal/testutils"
	"github.com/aretw0/topolab/pkg/archive"
	"github.com/aretw0/topolab/pkg/domain"
	"github.com/aretw0/topolab/pkg/ports"
	"github.com/aretw0/topolab/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildZip writes the given entries (name -> content) into an in-memory archive.
func buildZip(t *testing.T, entries map[string]string) *bytes.Reader {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return bytes.NewReader(buf.Bytes())
}

func readJSON(t *testing.T, path string) map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	srcDir := t.TempDir()
	imagePath := filepath.Join(t.TempDir(), "c7200-adventerprisek9-mz.124-24.T5.image")
	writeFile(t, filepath.Dir(imagePath), filepath.Base(imagePath), "IOS-IMAGE")

	p, err := topology.New("lab", srcDir)
	require.NoError(t, err)
	c := testutils.NewFakeCompute("local", "127.0.0.1")
	_, err = p.AddNode(ctx, c, "R1", "r1", domain.NodeTypeDynamips, map[string]any{"image": imagePath, "ram": 512})
	require.NoError(t, err)
	_, err = p.AddNode(ctx, c, "PC1", "pc1", domain.NodeTypeVPCS, nil)
	require.NoError(t, err)
	require.NoError(t, p.Commit())

	writeFile(t, srcDir, "project-files/dynamips/r1/configs/i1_startup-config.cfg", "hostname R1")
	writeFile(t, srcDir, "project-files/vpcs/pc1/startup.vpc", "ip 10.0.0.2/24")
	writeFile(t, srcDir, "project-files/dynamips/r1/r1_log.txt", "noise")
	writeFile(t, srcDir, "project-files/snapshots/old.gns3project", "snap")

	s, err := archive.Export(ctx, p, archive.Options{IncludeImages: true})
	require.NoError(t, err)
	var buf bytes.Buffer
	_, err = s.WriteTo(&buf)
	require.NoError(t, err)

	dest := t.TempDir()
	imagesDir := t.TempDir()
	res, err := archive.Import(ctx, bytes.NewReader(buf.Bytes()), int64(buf.Len()), dest, archive.Options{
		Name:   "lab-copy",
		Images: ports.ImageDirs{"IOS": imagesDir},
	})
	require.NoError(t, err)

	assert.Equal(t, "lab-copy", res.Name)
	assert.NotEqual(t, p.ID(), res.ProjectID)
	assert.Equal(t, filepath.Join(dest, "lab-copy.gns3"), res.Descriptor)
	assert.Empty(t, res.MissingImages)

	for _, rel := range []string{
		"project-files/dynamips/r1/configs/i1_startup-config.cfg",
		"project-files/vpcs/pc1/startup.vpc",
	} {
		want, err := os.ReadFile(filepath.Join(srcDir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		got, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, want, got, rel)
	}
	assert.NoFileExists(t, filepath.Join(dest, "project-files/dynamips/r1/r1_log.txt"))
	assert.NoFileExists(t, filepath.Join(dest, "project-files/snapshots/old.gns3project"))
	assert.DirExists(t, filepath.Join(dest, "project-files", "snapshots"))

	image, err := os.ReadFile(filepath.Join(imagesDir, filepath.Base(imagePath)))
	require.NoError(t, err)
	assert.Equal(t, "IOS-IMAGE", string(image))

	// Equivalent to the source descriptor apart from identity and the image path.
	var got domain.Topology
	data, err := os.ReadFile(res.Descriptor)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &got))
	want := p.Dump()
	assert.Equal(t, res.ProjectID, got.ProjectID)
	require.Len(t, got.Topology.Nodes, len(want.Topology.Nodes))
	for i := range want.Topology.Nodes {
		w, g := want.Topology.Nodes[i], got.Topology.Nodes[i]
		assert.Equal(t, w.NodeID, g.NodeID)
		assert.Equal(t, w.NodeType, g.NodeType)
		assert.Equal(t, w.Name, g.Name)
	}
	assert.Equal(t, filepath.Base(imagePath), got.Topology.Nodes[0].Properties["image"])
	assert.Equal(t, float64(512), got.Topology.Nodes[0].Properties["ram"])
}

func TestImport_RejectsEscapingEntries(t *testing.T) {
	for _, name := range []string{"../evil.txt", "/etc/evil.txt", "a/../../evil.txt"} {
		t.Run(name, func(t *testing.T) {
			dest := filepath.Join(t.TempDir(), "project")
			r := buildZip(t, map[string]string{
				domain.DescriptorName: `{"name":"x"}`,
				name:                  "pwned",
			})
			_, err := archive.Import(context.Background(), r, r.Size(), dest, archive.Options{})
			assert.ErrorIs(t, err, domain.ErrArchive)
			assert.NoDirExists(t, dest)
		})
	}
}

func TestImport_RequiresDescriptor(t *testing.T) {
	r := buildZip(t, map[string]string{"notes.txt": "hi"})
	_, err := archive.Import(context.Background(), r, r.Size(), t.TempDir(), archive.Options{})
	assert.ErrorIs(t, err, domain.ErrArchive)
}

func TestImport_ImagesGoToStoreWithoutOverwriting(t *testing.T) {
	imagesDir := t.TempDir()
	writeFile(t, imagesDir, "a.image", "OLD")
	r := buildZip(t, map[string]string{
		domain.DescriptorName: `{"name":"lab","topology":{"nodes":[]}}`,
		"images/IOS/a.image":  "NEW",
		"images/IOS/b.image":  "B",
	})

	dest := t.TempDir()
	_, err := archive.Import(context.Background(), r, r.Size(), dest, archive.Options{Images: ports.ImageDirs{"IOS": imagesDir}})
	require.NoError(t, err)

	a, err := os.ReadFile(filepath.Join(imagesDir, "a.image"))
	require.NoError(t, err)
	assert.Equal(t, "OLD", string(a))
	b, err := os.ReadFile(filepath.Join(imagesDir, "b.image"))
	require.NoError(t, err)
	assert.Equal(t, "B", string(b))
	assert.NoFileExists(t, filepath.Join(dest, "images", "IOS", "b.image"))
}

func TestImport_ReportsMissingImagesAndRewritesPaths(t *testing.T) {
	desc := `{"name":"lab","topology":{"nodes":[
		{"node_id":"r1","node_type":"dynamips","properties":{"image":"/opt/images/c3725.image"}},
		{"node_id":"q1","node_type":"qemu","properties":{"hda_disk_image":"present.qcow2"}}
	]}}`
	r := buildZip(t, map[string]string{domain.DescriptorName: desc})
	qemuDir := t.TempDir()
	writeFile(t, qemuDir, "present.qcow2", "Q")

	dest := t.TempDir()
	res, err := archive.Import(context.Background(), r, r.Size(), dest, archive.Options{
		Images: ports.ImageDirs{"IOS": t.TempDir(), "QEMU": qemuDir},
	})
	require.NoError(t, err)

	assert.Equal(t, "lab", res.Name)
	assert.Equal(t, []string{"IOS/c3725.image"}, res.MissingImages)

	raw := readJSON(t, res.Descriptor)
	assert.Equal(t, res.ProjectID, raw["project_id"])
	nodes := raw["topology"].(map[string]any)["nodes"].([]any)
	props := nodes[0].(map[string]any)["properties"].(map[string]any)
	assert.Equal(t, "c3725.image", props["image"])
}
