//go:build darwin && cgo

package window

/*
#cgo CFLAGS: -x objective-c
#cgo LDFLAGS: -framework Cocoa

#import <Cocoa/Cocoa.h>

// Returns the number of windows changed, or -1 when the change was queued
// on the main thread.
static int sd_set_sharing_none(void) {
	if (![NSThread isMainThread]) {
		dispatch_async(dispatch_get_main_queue(), ^{
			for (NSWindow *w in [NSApp windows]) {
				[w setSharingType:NSWindowSharingNone];
			}
		});
		return -1;
	}
	int n = 0;
	for (NSWindow *w in [NSApp windows]) {
		[w setSharingType:NSWindowSharingNone];
		n++;
	}
	return n;
}
*/
import "C"

// excludeFromCapture sets NSWindowSharingNone on the application's windows,
// which keeps them out of CGWindowListCreateImage and ScreenCaptureKit grabs.
func excludeFromCapture() error {
	if C.sd_set_sharing_none() == 0 {
		return errNoWindow
	}
	return nil
}
