// Command assetwatch watches a FastDL origin for changed map and texture
// files, archives every changed version into timestamped snapshots, and
// renders changed VTF textures into MP4 previews.
//
// "assetwatch run" starts the long-running poller in the foreground. The
// remaining commands are one-shot helpers: check runs a single poll cycle,
// convert renders a local texture, and history, snapshots, status and logs
// inspect what the poller has recorded.
package main
