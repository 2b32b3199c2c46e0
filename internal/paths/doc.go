// Provides platform-appropriate paths for durable tool state.
//
// All paths follow XDG conventions on Linux and platform-native conventions
// on macOS and Windows. The tool name "strata" is used as the subdirectory
// under each base path.
package paths
