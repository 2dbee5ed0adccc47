package scan

import "math"

// SphericalToCartesian converts a range sample (meters) at the given
// azimuth and elevation (degrees) into Cartesian sensor-frame
// coordinates. Coordinate convention: X=right, Y=forward, Z=up.
func SphericalToCartesian(distance, azimuthDeg, elevationDeg float64) (x, y, z float64) {
	azimuthRad := azimuthDeg * math.Pi / 180.0
	elevationRad := elevationDeg * math.Pi / 180.0

	cosElevation := math.Cos(elevationRad)
	sinElevation := math.Sin(elevationRad)

	x = distance * cosElevation * math.Sin(azimuthRad)
	y = distance * cosElevation * math.Cos(azimuthRad)
	z = distance * sinElevation
	return
}
