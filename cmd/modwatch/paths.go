package main

import "tools.zach/dev/modwatch/internal/paths"

// ///////////////////////////////////////////////
// Path Aliases
// ///////////////////////////////////////////////

// DataPaths aliases [paths.DataDir] so daemon code can build data directory
// paths without qualifying the internal package.
type DataPaths = paths.DataDir
