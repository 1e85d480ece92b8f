package system

// RenderTarget is the drawing surface handed to render-stage systems. The
// graphics backend supplies the real implementation; tests and the headless
// demo use recording stubs.
type RenderTarget interface {
	// UploadMesh transfers a mesh to the device. Not safe for concurrent
	// use; MeshUploadSystem is registered non-parallel for this reason.
	UploadMesh(vertices int)
	// DrawMesh issues one draw call inside the current render pass.
	DrawMesh(vertices int)
}
