package common

// All units are metric:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds

const SpeedOfWalkingMin = 0.42  // or 1.5 km/h or 1 mph
const SpeedOfWalkingMean = 1.2  // or 4.3 km/h or 2.7 mph
const SpeedOfWalkingMax = 1.78  // or 6.4 km/h or 4 mph
const SpeedOfRunningMin = 2.23  // or 8 km/h or 5 mph
const SpeedOfRunningMean = 3.35 // or 12 km/h or 8min/mile
const SpeedOfRunningMax = 5.56  // or 20 km/h or 12 mph
const SpeedOfCyclingMin = SpeedOfRunningMin
const SpeedOfCyclingMean = 5.36 // or 19.3 km/h or 12 mph
const SpeedOfCyclingMax = 11.76 // or 42 km/h or 26 mph

const SpeedOfSound = 343.0

const ElevationOfDeadSea = -430.0
const ElevationOfTroposphere = 11000.0
