/*
Package archive exports a project to a portable zip archive and imports it back.

Export refuses projects that cannot be moved (running nodes, or nodes bound to
host-local resources such as VirtualBox, VMware or cloud interfaces), then
snapshots the project tree and returns a Stream that compresses files on demand.
The archived descriptor is always named project.gns3, snapshots and log files are
left out, and absolute image paths are reduced to their base name so the project
resolves images against the importing host's image stores.
*/
package archive
