// Package fileutil moves finished artifacts from run workspaces into the
// output directory.
package fileutil
