//go:build !rtdebug

package rendertask

const debugBuild = false
