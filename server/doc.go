/*
Package server provides the HTTP interface to live volumes.

A Server holds every volume in memory, persists snapshots through a storage.Store, and serves
the GPU buffer of a volume for upload by a renderer.  Routes are under /api:

	GET    /api/server/info
	GET    /api/volumes
	POST   /api/volumes
	GET    /api/volume/:name/info
	POST   /api/volume/:name/voxels
	GET    /api/volume/:name/voxel/:x/:y/:z
	PUT    /api/volume/:name/palette/:index
	GET    /api/volume/:name/raycast
	GET    /api/volume/:name/octree
	GET    /api/volume/:name/gpu
	POST   /api/volume/:name/snapshot
	DELETE /api/volume/:name

When a secret key is configured, requests other than GET and HEAD need a JWT in the
Authorization header.
*/
package server
