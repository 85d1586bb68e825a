// Package app provides the application service layer.
//
// Orchestrates the font pipeline: upload, character resolution, subsetting,
// export, download and session teardown. Sits between HTTP handlers and the
// session store and font backend. Depends on domain interfaces, not concrete
// implementations.
package app
