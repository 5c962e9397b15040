// Package preflight provides readiness checks for the origin, the local
// directories and the ffmpeg toolchain assetwatch depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll on start and logs every failure as a warning.
//     Failures never block polling; a broken origin shows up as per-cycle
//     network errors anyway.
//   - The CLI "assetwatch status" command renders the same results next to
//     the dependency table from CheckSystemDeps.
package preflight
