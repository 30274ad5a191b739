// Package capture archives received input packets to S3 for offline
// replay and debugging.
//
//	client := capture.NewS3Client("eu-west-1", "")
//	archive := capture.NewArchive(client, capture.Config{
//	    Bucket:         "replays",
//	    Prefix:         "captures/",
//	    SegmentPackets: 1024,
//	})
//	defer archive.Close(ctx)
//
// An Archive satisfies transport.PacketRecorder. Segments are read back
// with DecodeSegment.
package capture
